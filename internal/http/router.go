package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/herapt/internal/auth"
	"github.com/geocoder89/herapt/internal/config"
	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/geocoder89/herapt/internal/http/handlers"
	"github.com/geocoder89/herapt/internal/http/middlewares"
	"github.com/geocoder89/herapt/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// UserStore is implemented by the memory, postgres and mongodb repos.
type UserStore interface {
	Create(ctx context.Context, in user.CreateUserInput) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error)
	SetCareerRecommendations(ctx context.Context, id string, recs []user.CareerRecommendation) (user.User, error)
	SetMentorMatches(ctx context.Context, id string, matches []user.MentorMatch) (user.User, error)
	ListByRole(ctx context.Context, role user.Role) ([]user.User, error)
	ListMenteesMatchedTo(ctx context.Context, mentorID string) ([]user.User, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Config config.Config
	Users  UserStore
	Tokens *auth.Manager
	ML     handlers.MLService

	// Optional. Mentees defaults to Users; Matches nil skips the projection.
	Mentees handlers.MenteeLister
	Matches handlers.MatchRecorder

	// Optional. nil falls back to the in-process limiter.
	Limiter middlewares.LimiterStore

	// Optional. nil disables /metrics and request metrics.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, deps Deps) *gin.Engine {
	cfg := deps.Config

	if !cfg.IsDev() && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(middlewares.Recovery(log))
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(observability.ServiceName))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins()))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.Users.Ping)
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// wire up handlers

	var rejections middlewares.RejectionObserver
	if deps.Prom != nil {
		rejections = deps.Prom
	}

	mentees := deps.Mentees
	if mentees == nil {
		mentees = deps.Users
	}

	authMW := middlewares.NewAuthMiddleware(deps.Tokens, deps.Users, rejections)
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, cfg)
	careerHandler := handlers.NewCareerHandler(deps.Users, deps.ML)
	mentorHandler := handlers.NewMentorHandler(deps.Users, mentees, deps.Matches, deps.ML)

	authLimiter := middlewares.NewRateLimiter(deps.Limiter, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
	mlLimiter := middlewares.NewRateLimiter(deps.Limiter, "ml", cfg.MLRateLimit, cfg.MLRateWindow)
	perUserML := mlLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Register)
		authGroup.POST("/login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)
		authGroup.PUT("/profile", authMW.RequireAuth(), authHandler.UpdateProfile)
	}

	career := api.Group("/career", authMW.RequireAuth())
	{
		career.POST("/recommend", perUserML, careerHandler.Recommend)
		career.GET("/recommendations", careerHandler.ListRecommendations)
	}

	mentor := api.Group("/mentor", authMW.RequireAuth())
	{
		mentor.POST("/match", authMW.RequireRole(user.RoleMentee, "Only mentees can request mentor matches."), perUserML, mentorHandler.Match)
		mentor.GET("/list", mentorHandler.ListMentors)
		mentor.GET("/matches", mentorHandler.ListMatches)
		mentor.GET("/mentees", mentorHandler.ListMentees)
		mentor.GET("/requests", mentorHandler.ListRequests)
	}

	return r
}
