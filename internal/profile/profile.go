package profile

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts the storage spelling "alumni" as an alias for mentor.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student":
		return RoleStudent, nil
	case "mentor", "alumni":
		return RoleMentor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown profile role %q", raw)
	}
}

// Details holds the mutable part of a profile. Identity and role live on
// Profile itself and cannot be changed after New.
type Details struct {
	FullName       string
	Bio            string
	Skills         Tags
	Interests      Tags
	Department     string
	Company        Optional[string]
	JobTitle       Optional[string]
	Location       Optional[string]
	Email          Optional[string]
	GraduationYear Optional[int]
	LinkedInURL    Optional[string]
}

type Profile struct {
	id   string
	role Role
	Details
}

func New(id string, role Role, details Details) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, fmt.Errorf("profile id is required")
	}

	switch role {
	case RoleStudent, RoleMentor, RoleAdmin:
	default:
		return Profile{}, fmt.Errorf("unknown profile role %q", role)
	}

	return Profile{id: id, role: role, Details: details}, nil
}

func (p Profile) ID() string { return p.id }

func (p Profile) Role() Role { return p.role }

func (p Profile) IsMentor() bool { return p.role == RoleMentor }

// HasBio reports whether the bio carries any non-whitespace text.
func (p Profile) HasBio() bool {
	return strings.TrimSpace(p.Bio) != ""
}

// Match is a candidate mentor together with its compatibility score and a short
// justification. It is produced by the scoring engine or the reasoning client
// and never persisted.
type Match struct {
	Mentor Profile
	Score  int
	Reason string
}
