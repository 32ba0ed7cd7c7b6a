package api

import (
	"time"

	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/store"
)

type MentorMatchResponse struct {
	ID             string   `json:"id"`
	Role           string   `json:"role"`
	FullName       string   `json:"full_name"`
	Department     string   `json:"department"`
	Skills         []string `json:"skills"`
	Interests      []string `json:"interests"`
	Bio            string   `json:"bio"`
	Company        *string  `json:"company"`
	JobTitle       *string  `json:"job_title"`
	Location       *string  `json:"location"`
	GraduationYear *int     `json:"graduation_year"`
	LinkedInURL    *string  `json:"linkedin_url"`
	MatchScore     int      `json:"matchScore"`
	MatchReason    string   `json:"matchReason"`
}

type MentorMatchesResponse struct {
	Mentors []MentorMatchResponse `json:"mentors"`
	Source  string                `json:"source"`
}

type ConnectRequest struct {
	StudentID string `json:"studentId"`
	MentorID  string `json:"mentorId"`
	Message   string `json:"message"`
}

type ConnectionResponse struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	MentorID  string    `json:"mentorId"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func toMentorMatch(m profile.Match) MentorMatchResponse {
	p := m.Mentor
	return MentorMatchResponse{
		ID:             p.ID(),
		Role:           string(p.Role()),
		FullName:       p.FullName,
		Department:     p.Department,
		Skills:         p.Skills.Values(),
		Interests:      p.Interests.Values(),
		Bio:            p.Bio,
		Company:        p.Company.Ptr(),
		JobTitle:       p.JobTitle.Ptr(),
		Location:       p.Location.Ptr(),
		GraduationYear: p.GraduationYear.Ptr(),
		LinkedInURL:    p.LinkedInURL.Ptr(),
		MatchScore:     m.Score,
		MatchReason:    m.Reason,
	}
}

func toConnection(c store.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:        c.ID,
		StudentID: c.StudentID,
		MentorID:  c.MentorID,
		Status:    string(c.Status),
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}
}
