package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/herapt/internal/config"
	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/geocoder89/herapt/internal/http/middlewares"
	"github.com/geocoder89/herapt/internal/ml"
	"github.com/gin-gonic/gin"
)

// MaxStoredMatches is how many ranked mentors are kept on the mentee record.
const MaxStoredMatches = 5

type MentorUsers interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	ListByRole(ctx context.Context, role user.Role) ([]user.User, error)
	SetMentorMatches(ctx context.Context, id string, matches []user.MentorMatch) (user.User, error)
}

// MenteeLister answers "which mentees were matched to this mentor". Served
// by the graph projection when configured, otherwise by the user store.
type MenteeLister interface {
	ListMenteesMatchedTo(ctx context.Context, mentorID string) ([]user.User, error)
}

// MatchRecorder mirrors stored matches into a secondary index.
type MatchRecorder interface {
	RecordMatches(ctx context.Context, menteeID string, matches []user.MentorMatch) error
}

type MentorHandler struct {
	users    MentorUsers
	mentees  MenteeLister
	recorder MatchRecorder
	ml       MLService
	now      func() time.Time
}

func NewMentorHandler(users MentorUsers, mentees MenteeLister, recorder MatchRecorder, mlService MLService) *MentorHandler {
	return &MentorHandler{
		users:    users,
		mentees:  mentees,
		recorder: recorder,
		ml:       mlService,
		now:      time.Now,
	}
}

type populatedMatch struct {
	MentorID           *user.User `json:"mentorId"`
	CompatibilityScore float64    `json:"compatibilityScore"`
	Timestamp          time.Time  `json:"timestamp"`
}

func (h *MentorHandler) Match(ctx *gin.Context) {
	mentee, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, middlewares.CodeMissingCredential, "Not authorized to access this route")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	mentors, err := h.users.ListByRole(cctx, user.RoleMentor)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list_mentors_failed", "err", err)
		RespondInternal(ctx, msgServerError)
		return
	}

	if len(mentors) == 0 {
		ctx.JSON(http.StatusOK, gin.H{
			"success": true,
			"matches": []ml.Match{},
			"message": "No mentors available yet",
		})
		return
	}

	req := ml.MatchRequest{
		Mentee: ml.MenteeInput{
			Skills:      nonNil(mentee.Profile.Skills),
			Interests:   nonNil(mentee.Profile.Interests),
			CareerGoals: mentee.Profile.CareerGoals,
		},
		Mentors: make([]ml.MentorInput, 0, len(mentors)),
	}
	for _, m := range mentors {
		req.Mentors = append(req.Mentors, ml.MentorInput{
			ID:         m.ID,
			Name:       m.Name,
			Expertise:  nonNil(m.Profile.Expertise),
			Bio:        m.Profile.Bio,
			Experience: m.Profile.Experience,
		})
	}

	matches, err := h.ml.MatchMentors(ctx.Request.Context(), req)
	if err != nil {
		respondUpstreamError(ctx, "match_mentor", err)
		return
	}

	now := h.now().UTC()
	top := matches[:min(len(matches), MaxStoredMatches)]
	stored := make([]user.MentorMatch, 0, len(top))
	for _, m := range top {
		stored = append(stored, user.MentorMatch{
			MentorID:           m.MentorID,
			CompatibilityScore: m.Score,
			Timestamp:          now,
		})
	}

	wctx, wcancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer wcancel()

	if _, err := h.users.SetMentorMatches(wctx, mentee.ID, stored); err != nil {
		respondUserLookupError(ctx, err)
		return
	}

	if h.recorder != nil {
		if err := h.recorder.RecordMatches(wctx, mentee.ID, stored); err != nil {
			// the user record is the source of truth; the projection catches up on the next match
			slog.Default().WarnContext(ctx.Request.Context(), "match_graph_write_failed", "mentee_id", mentee.ID, "err", err)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"matches": matches,
	})
}

func (h *MentorHandler) ListMentors(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	mentors, err := h.users.ListByRole(cctx, user.RoleMentor)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list_mentors_failed", "err", err)
		RespondInternal(ctx, msgServerError)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"mentors": mentors,
	})
}

func (h *MentorHandler) ListMatches(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		respondUserLookupError(ctx, err)
		return
	}

	out := make([]populatedMatch, 0, len(u.MentorMatches))
	for _, m := range u.MentorMatches {
		pm := populatedMatch{CompatibilityScore: m.CompatibilityScore, Timestamp: m.Timestamp}

		mentor, err := h.users.GetByID(cctx, m.MentorID)
		switch {
		case err == nil:
			mentor = mentor.Redacted()
			pm.MentorID = &mentor
		case errors.Is(err, user.ErrNotFound):
			// mentor account is gone; keep the entry with a null reference
		default:
			slog.Default().ErrorContext(ctx.Request.Context(), "populate_match_failed", "mentor_id", m.MentorID, "err", err)
			RespondInternal(ctx, msgServerError)
			return
		}

		out = append(out, pm)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"matches": out,
	})
}

func (h *MentorHandler) ListMentees(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	mentees, err := h.mentees.ListMenteesMatchedTo(cctx, userID)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list_mentees_failed", "err", err)
		RespondInternal(ctx, msgServerError)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"success": true,
		"mentees": nonNil(mentees),
	})
}

// ListRequests always returns an empty list; there is no session-request model yet.
func (h *MentorHandler) ListRequests(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"requests": []struct{}{},
	})
}
