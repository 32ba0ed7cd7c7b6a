// Package scoring implements the deterministic mentor compatibility heuristic.
// It is used as the fallback when the reasoning service cannot be trusted and
// as a sanity baseline next to it.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/mentor-ranker/internal/profile"
)

const (
	departmentPoints     = 30
	perSkillPoints       = 6
	maxSkillPoints       = 30
	perInterestPoints    = 5
	maxInterestPoints    = 20
	completePoints       = 10
	partialPoints        = 5
	basePoints           = 10
	minScore             = 0
	maxScore             = 100
	generalCompatibility = "General compatibility"
)

// Breakdown lists the points contributed by every factor.
type Breakdown struct {
	Department      int
	Skills          int
	SharedSkills    int
	Interests       int
	SharedInterests int
	Completeness    int
	Base            int
}

func (b Breakdown) Total() int {
	return Clamp(b.Department + b.Skills + b.Interests + b.Completeness + b.Base)
}

// Score returns the compatibility score and a short reason for one pair.
func Score(student, mentor profile.Profile) (int, string) {
	b := Explain(student, mentor)
	return b.Total(), b.Reason()
}

// Explain computes the per-factor breakdown for one pair.
func Explain(student, mentor profile.Profile) Breakdown {
	b := Breakdown{Base: basePoints}

	if sameDepartment(student.Department, mentor.Department) {
		b.Department = departmentPoints
	}

	b.SharedSkills = len(student.Skills.Intersect(mentor.Skills))
	b.Skills = min(maxSkillPoints, perSkillPoints*b.SharedSkills)

	b.SharedInterests = len(student.Interests.Intersect(mentor.Interests))
	b.Interests = min(maxInterestPoints, perInterestPoints*b.SharedInterests)

	switch filled := completeness(mentor); {
	case filled == 3:
		b.Completeness = completePoints
	case filled > 0:
		b.Completeness = partialPoints
	}

	return b
}

type factor struct {
	points int
	text   string
}

// Reason names the top one or two factors above the base term. Ties keep the
// order department, skills, interests, completeness.
func (b Breakdown) Reason() string {
	factors := make([]factor, 0, 4)
	if b.Department > 0 {
		factors = append(factors, factor{b.Department, "shared department"})
	}
	if b.Skills > 0 {
		factors = append(factors, factor{b.Skills, plural(b.SharedSkills, "overlapping skill", "overlapping skills")})
	}
	if b.Interests > 0 {
		factors = append(factors, factor{b.Interests, plural(b.SharedInterests, "shared interest", "shared interests")})
	}
	switch b.Completeness {
	case completePoints:
		factors = append(factors, factor{b.Completeness, "a complete mentor profile"})
	case partialPoints:
		factors = append(factors, factor{b.Completeness, "a partially complete mentor profile"})
	}

	if len(factors) == 0 {
		return generalCompatibility
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].points > factors[j].points
	})

	if len(factors) > 2 {
		factors = factors[:2]
	}

	parts := make([]string, 0, len(factors))
	for _, f := range factors {
		parts = append(parts, f.text)
	}

	return capitalize(strings.Join(parts, " and "))
}

// Clamp bounds a score to [0, 100].
func Clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func sameDepartment(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

func completeness(mentor profile.Profile) int {
	filled := 0
	if mentor.HasBio() {
		filled++
	}
	if mentor.Company.IsSet() {
		filled++
	}
	if mentor.JobTitle.IsSet() {
		filled++
	}
	return filled
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
