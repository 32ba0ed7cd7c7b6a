package ai

import (
	"context"

	"github.com/spigell/mentor-ranker/internal/profile"
)

// Ranker asks an external reasoning service to rank candidate mentors for a
// student. Implementations make a single bounded attempt and return matches in
// the order the service produced them; they never retry.
type Ranker interface {
	Rank(ctx context.Context, student profile.Profile, candidates []profile.Profile, maxResults int) (Ranking, error)
}

// Ranking is a parsed answer together with the body it was parsed from, so a
// later rejection can still report what the service said.
type Ranking struct {
	Matches []profile.Match
	Raw     string
}

// Entry is one validated item of a reasoning response. Index addresses the
// candidate list that was sent with the request.
type Entry struct {
	Index  int
	Score  int
	Reason string
}
