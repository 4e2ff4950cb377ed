package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/server/middleware"
	"github.com/kindfund/kindfund/internal/service"
)

// AuthHandler serves the admin session endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	metrics *metrics.Manager
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. m and logger may be nil.
func NewAuthHandler(auth *service.AuthService, m *metrics.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: m, logger: orDiscard(logger)}
}

// credentialsRequest is the payload of login and register.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginResponse is the response payload for a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
}

// Login authenticates an admin and returns a signed session token.
// POST /api/v1/admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrMissingCredentials):
		h.metrics.ObserveLogin("missing")
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		h.metrics.ObserveLogin("invalid")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	default:
		h.metrics.ObserveLogin("error")
		writeStoreError(w, r, h.logger, err, "")
		return
	}

	h.metrics.ObserveLogin("success")
	h.logger.InfoContext(r.Context(), "admin logged in",
		"email", sess.Email,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     sess.Token,
		TokenType: "bearer",
		ExpiresIn: int(sess.ExpiresAt.Sub(sess.IssuedAt).Seconds()),
		ExpiresAt: sess.ExpiresAt,
		Email:     sess.Email,
	})
}

// Logout acknowledges a logout. Tokens are stateless, so the client
// discards its copy and nothing changes on the server.
// POST /api/v1/admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session ended; discard the token",
	})
}

// Register creates another admin. It is only reachable through the gate.
// POST /api/v1/admin/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	admin, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrAdminExists):
		writeError(w, http.StatusConflict, "Admin with this email already exists")
		return
	default:
		writeStoreError(w, r, h.logger, err, "")
		return
	}

	var by string
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		by = p.Email
	}
	h.logger.InfoContext(r.Context(), "admin registered", "email", admin.Email, "by", by)
	writeJSON(w, http.StatusCreated, admin)
}

// Me returns the identity carried by the caller's token.
// GET /api/v1/admin/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"admin_id":   p.AdminID,
		"email":      p.Email,
		"issued_at":  p.IssuedAt,
		"expires_at": p.ExpiresAt,
	})
}
