package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/spigell/mentor-ranker/internal/matching"
	"github.com/spigell/mentor-ranker/internal/store"
)

type MatchingService interface {
	RankMentors(ctx context.Context, studentID string, maxResults *int) (matching.Shortlist, error)
	Connect(ctx context.Context, studentID, mentorID, message string) (store.Connection, error)
}

type MatchHandler struct {
	svc MatchingService
}

func NewMatchHandler(svc MatchingService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

func (h *MatchHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/students/:id/mentor-matches", h.GetMentorMatches)
	r.Post("/connections", h.CreateConnection)
}

func (h *MatchHandler) GetMentorMatches(c fiber.Ctx) error {
	var limit *int
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return NewAppError(fiber.StatusBadRequest, "limit must be an integer", nil, err)
		}
		limit = &n
	}

	list, err := h.svc.RankMentors(c.Context(), c.Params("id"), limit)
	if err != nil {
		return mapMatchingError(err)
	}

	out := MentorMatchesResponse{
		Mentors: make([]MentorMatchResponse, 0, len(list.Matches)),
		Source:  string(list.Source),
	}
	for _, m := range list.Matches {
		out.Mentors = append(out.Mentors, toMentorMatch(m))
	}

	return Success(c, fiber.StatusOK, MessageOK, out)
}

func (h *MatchHandler) CreateConnection(c fiber.Ctx) error {
	var req ConnectRequest
	if err := c.Bind().Body(&req); err != nil {
		return NewAppError(fiber.StatusBadRequest, "invalid request body", nil, err)
	}

	conn, err := h.svc.Connect(c.Context(), req.StudentID, req.MentorID, req.Message)
	if err != nil {
		return mapMatchingError(err)
	}

	return Success(c, fiber.StatusCreated, MessageCreated, toConnection(conn))
}

func mapMatchingError(err error) error {
	switch {
	case errors.Is(err, matching.ErrStudentNotFound):
		return NewAppError(fiber.StatusNotFound, "student not found", nil, err)
	case errors.Is(err, matching.ErrMentorNotFound):
		return NewAppError(fiber.StatusNotFound, "mentor not found", nil, err)
	case errors.Is(err, matching.ErrInvalidConnection):
		return NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, store.ErrConnectionExists):
		return NewAppError(fiber.StatusConflict, "connection already exists", nil, err)
	default:
		return NewAppError(fiber.StatusInternalServerError, "", nil, err)
	}
}
