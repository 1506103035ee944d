package seeds

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seeds.yaml
var files embed.FS

// File is the parsed form of a seed document.
type File struct {
	Users []User `yaml:"users"`
}

// User is one bootstrap account to ensure exists.
type User struct {
	Email         string `yaml:"email"`
	FullName      string `yaml:"full_name"`
	Role          string `yaml:"role"`
	Password      string `yaml:"password"`
	EmailVerified bool   `yaml:"email_verified"`
}

// Load returns the embedded default seed document.
func Load() (File, error) {
	raw, err := files.ReadFile("seeds.yaml")
	if err != nil {
		return File{}, fmt.Errorf("read embedded seeds: %w", err)
	}
	return parse(raw)
}

// LoadPath reads a seed document from disk, for operator-supplied overrides.
func LoadPath(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seeds %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parse seeds: %w", err)
	}
	for i, u := range f.Users {
		if u.Email == "" {
			return File{}, fmt.Errorf("seed user %d: email is required", i)
		}
		if u.Role == "" {
			f.Users[i].Role = "author"
		}
	}
	return f, nil
}
