package portal

import (
	"reflect"
	"testing"
)

func TestProfileCompletion(t *testing.T) {
	complete := User{
		FullName:    "Ana M. Costa",
		Affiliation: "Aalto University",
		OrcidID:     "0000-0002-1825-0097",
	}
	filled := Profile{
		Bio:               "Underwater acoustics, sonar imaging, and seabed classification methods.",
		Country:           "FI",
		ResearchInterests: []string{"sonar"},
	}

	tests := []struct {
		name        string
		user        User
		profile     Profile
		wantPercent int
		wantMissing []string
	}{
		{
			name:        "everything filled",
			user:        complete,
			profile:     filled,
			wantPercent: 100,
			wantMissing: []string{},
		},
		{
			name:        "fresh account",
			user:        User{},
			profile:     Profile{},
			wantPercent: 0,
			wantMissing: []string{"full_name", "affiliation", "bio", "country", "research_interests", "orcid_id"},
		},
		{
			name: "short bio does not count",
			user: complete,
			profile: Profile{
				Bio:               "Sonar.",
				Country:           "FI",
				ResearchInterests: []string{"sonar"},
			},
			wantPercent: 83,
			wantMissing: []string{"bio"},
		},
		{
			name:        "name and affiliation only",
			user:        User{FullName: "Wei Zhang", Affiliation: "Tsinghua University"},
			profile:     Profile{},
			wantPercent: 33,
			wantMissing: []string{"bio", "country", "research_interests", "orcid_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent, missing := profileCompletion(tt.user, tt.profile)
			if percent != tt.wantPercent {
				t.Errorf("percent = %d, want %d", percent, tt.wantPercent)
			}
			if !reflect.DeepEqual(missing, tt.wantMissing) {
				t.Errorf("missing = %v, want %v", missing, tt.wantMissing)
			}
		})
	}
}
