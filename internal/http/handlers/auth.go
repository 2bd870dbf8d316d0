package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/herapt/internal/config"
	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/geocoder89/herapt/internal/http/middlewares"
	"github.com/geocoder89/herapt/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgServerError        = "Server error"
)

// The cookie outlives short token TTLs; the gate still rejects expired tokens.
const tokenCookieMaxAge = 7 * 24 * 60 * 60

type AuthUsers interface {
	Create(ctx context.Context, in user.CreateUserInput) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error)
}

type TokenIssuer interface {
	Issue(subject string) (string, error)
}

type AuthHandler struct {
	users  AuthUsers
	tokens TokenIssuer
	cfg    config.Config
}

func NewAuthHandler(users AuthUsers, tokens TokenIssuer, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Role     string `json:"role" binding:"omitempty,oneof=mentee mentor"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Profile user.Profile `json:"profile"`
}

type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    user.Summary `json:"user"`
}

type userResponse struct {
	Success bool      `json:"success"`
	User    user.User `json:"user"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		RespondBadRequest(ctx, "Invalid request body", fieldError("name", "required", "is required"))
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", fieldError("role", "oneof", "must be one of mentee, mentor"))
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "password_hash_failed", "err", err)
		RespondInternal(ctx, msgServerError)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.Create(cctx, user.CreateUserInput{
		Name:         name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondError(ctx, http.StatusBadRequest, "duplicate_email", "User already exists", nil)
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "user_create_failed", "err", err)
		RespondInternal(ctx, msgServerError)
		return
	}

	h.issueSession(ctx, http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			slog.Default().ErrorContext(ctx.Request.Context(), "login_lookup_failed", "err", err)
			RespondInternal(ctx, msgServerError)
			return
		}

		// unknown email pays for a bcrypt round too
		security.BurnCompare(req.Password)
		RespondUnauthorized(ctx, "invalid_credentials", msgInvalidCredentials)
		return
	}

	if err := security.CheckPassword(foundUser.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", msgInvalidCredentials)
		return
	}

	h.issueSession(ctx, http.StatusOK, foundUser)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.clearTokenCookie(ctx)
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, middlewares.CodeMissingCredential, "Not authorized to access this route")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		respondUserLookupError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, userResponse{Success: true, User: u.Redacted()})
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, middlewares.CodeMissingCredential, "Not authorized to access this route")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, userID, req.Profile.Normalize())
	if err != nil {
		respondUserLookupError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, userResponse{Success: true, User: u.Redacted()})
}

// Helper functions

func (h *AuthHandler) issueSession(ctx *gin.Context, status int, u user.User) {
	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "token_issue_failed", "err", err)
		RespondInternal(ctx, msgServerError)
		return
	}

	h.setTokenCookie(ctx, token)

	ctx.JSON(status, authResponse{
		Success: true,
		Token:   token,
		User:    u.Summary(),
	})
}

func (h *AuthHandler) setTokenCookie(ctx *gin.Context, token string) {
	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		middlewares.TokenCookie,
		token,
		tokenCookieMaxAge,
		"/",
		"",
		h.cfg.IsProd(),
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearTokenCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		middlewares.TokenCookie,
		"",
		-1,
		"/",
		"",
		h.cfg.IsProd(),
		true,
	)
}

func respondUserLookupError(ctx *gin.Context, err error) {
	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, middlewares.CodeIdentityNotFound, msgUserNotFound)
		return
	}

	slog.Default().ErrorContext(ctx.Request.Context(), "user_lookup_failed", "err", err)
	RespondInternal(ctx, msgServerError)
}
