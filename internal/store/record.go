package store

import (
	"fmt"

	"github.com/spigell/mentor-ranker/internal/profile"
)

// ProfileRecord mirrors a row of the profiles table. Nullable columns are
// pointers; the json tags double as mapstructure keys for the file adapter.
type ProfileRecord struct {
	ID             string   `json:"id"`
	Role           string   `json:"role"`
	FullName       *string  `json:"full_name"`
	Email          *string  `json:"email"`
	Department     *string  `json:"department"`
	Skills         []string `json:"skills"`
	Interests      []string `json:"interests"`
	Bio            *string  `json:"bio"`
	Company        *string  `json:"company"`
	JobTitle       *string  `json:"job_title"`
	Location       *string  `json:"location"`
	GraduationYear *int     `json:"graduation_year"`
	LinkedInURL    *string  `json:"linkedin_url"`
}

// Profile converts the record into the domain model.
func (r ProfileRecord) Profile() (profile.Profile, error) {
	role, err := profile.ParseRole(r.Role)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", r.ID, err)
	}

	details := profile.Details{
		FullName:    deref(r.FullName),
		Bio:         deref(r.Bio),
		Department:  deref(r.Department),
		Skills:      profile.NewTags(r.Skills...),
		Interests:   profile.NewTags(r.Interests...),
		Company:     profile.OptionalStringPtr(r.Company),
		JobTitle:    profile.OptionalStringPtr(r.JobTitle),
		Location:    profile.OptionalStringPtr(r.Location),
		Email:       profile.OptionalStringPtr(r.Email),
		LinkedInURL: profile.OptionalStringPtr(r.LinkedInURL),
	}
	if r.GraduationYear != nil {
		details.GraduationYear = profile.Some(*r.GraduationYear)
	}

	p, err := profile.New(r.ID, role, details)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", r.ID, err)
	}
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
