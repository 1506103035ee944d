package portal

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vellum/infra/seeds"
)

// Seed ensures the bootstrap accounts from the seed document exist.
// Existing accounts are left untouched.
func Seed(ctx context.Context, orm *gorm.DB, file seeds.File) error {
	for _, u := range file.Users {
		if !validRole(u.Role) {
			return fmt.Errorf("seed user %s: unknown role %q", u.Email, u.Role)
		}
		model := userModel{
			Email:         u.Email,
			FullName:      u.FullName,
			Role:          u.Role,
			EmailVerified: u.EmailVerified,
		}
		if u.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			model.PasswordHash = string(hash)
		}
		if err := orm.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
			Create(&model).Error; err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return nil
}
