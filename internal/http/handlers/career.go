package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/herapt/internal/config"
	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/geocoder89/herapt/internal/http/middlewares"
	"github.com/geocoder89/herapt/internal/ml"
	"github.com/gin-gonic/gin"
)

type CareerUsers interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	SetCareerRecommendations(ctx context.Context, id string, recs []user.CareerRecommendation) (user.User, error)
}

type CareerHandler struct {
	users CareerUsers
	ml    MLService
	now   func() time.Time
}

func NewCareerHandler(users CareerUsers, mlService MLService) *CareerHandler {
	return &CareerHandler{users: users, ml: mlService, now: time.Now}
}

type RecommendRequest struct {
	Education   string   `json:"education" binding:"max=500"`
	Experience  string   `json:"experience" binding:"max=2000"`
	Skills      []string `json:"skills" binding:"max=50,dive,max=100"`
	Interests   []string `json:"interests" binding:"max=50,dive,max=100"`
	CareerGoals string   `json:"careerGoals" binding:"max=2000"`
}

type recommendationsResponse struct {
	Success         bool                        `json:"success"`
	Recommendations []user.CareerRecommendation `json:"recommendations"`
}

func (h *CareerHandler) Recommend(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	var req RecommendRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Education == "" && len(req.Skills) == 0 && len(req.Interests) == 0 {
		RespondBadRequest(ctx, "Please provide relevant profile details for recommendations", nil)
		return
	}

	preds, err := h.ml.PredictCareer(ctx.Request.Context(), ml.CareerInput{
		Education:   req.Education,
		Experience:  req.Experience,
		Skills:      nonNil(req.Skills),
		Interests:   nonNil(req.Interests),
		CareerGoals: req.CareerGoals,
	})
	if err != nil {
		respondUpstreamError(ctx, "predict_career", err)
		return
	}

	now := h.now().UTC()
	recs := make([]user.CareerRecommendation, 0, len(preds))
	for _, p := range preds {
		recs = append(recs, user.CareerRecommendation{
			CareerPath: p.Career,
			Confidence: p.Confidence,
			Skills:     p.RequiredSkills,
			Timestamp:  now,
		})
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.SetCareerRecommendations(cctx, userID, recs)
	if err != nil {
		respondUserLookupError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, recommendationsResponse{
		Success:         true,
		Recommendations: nonNil(u.CareerRecommendations),
	})
}

func (h *CareerHandler) ListRecommendations(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		respondUserLookupError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, recommendationsResponse{
		Success:         true,
		Recommendations: nonNil(u.CareerRecommendations),
	})
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
