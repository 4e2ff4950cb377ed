package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// TokenVerifier validates a session token. *service.AuthService satisfies it.
type TokenVerifier interface {
	VerifyToken(token string) (*service.Principal, error)
}

// Gate admits requests carrying a valid Bearer session token and rejects
// everything else with 401 before the wrapped handler runs.
type Gate struct {
	verifier TokenVerifier
	logger   *slog.Logger
	metrics  *metrics.Manager
}

// NewGate returns a Gate backed by verifier. logger and m may be nil.
func NewGate(verifier TokenVerifier, logger *slog.Logger, m *metrics.Manager) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{verifier: verifier, logger: logger, metrics: m}
}

// Require wraps next so it only runs for admitted requests. The resolved
// principal is attached to the request context.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Check(r)
		if err != nil {
			var rej *service.RejectionError
			if !errors.As(err, &rej) {
				rej = &service.RejectionError{Reason: service.ReasonMalformed, Err: err}
			}
			g.metrics.ObserveRejection(string(rej.Reason))
			g.logger.LogAttrs(r.Context(), slog.LevelDebug, "request rejected",
				slog.String("reason", string(rej.Reason)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			writeRejection(w, rej)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Check resolves the principal for r without writing a response.
func (g *Gate) Check(r *http.Request) (*service.Principal, error) {
	token, rej := bearerToken(r.Header.Get("Authorization"))
	if rej != nil {
		return nil, rej
	}
	return g.verifier.VerifyToken(token)
}

// bearerToken extracts the token from an Authorization header value. The
// scheme name is case-insensitive.
func bearerToken(header string) (string, *service.RejectionError) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", &service.RejectionError{Reason: service.ReasonMissing}
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", &service.RejectionError{Reason: service.ReasonMalformed, Err: errors.New("authorization scheme must be Bearer")}
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", &service.RejectionError{Reason: service.ReasonMalformed, Err: errors.New("empty or malformed bearer token")}
	}
	return token, nil
}

func writeRejection(w http.ResponseWriter, rej *service.RejectionError) {
	challenge := `Bearer realm="kindfund"`
	if rej.Reason != service.ReasonMissing {
		challenge += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    http.StatusUnauthorized,
			Message: rej.Message(),
			Context: map[string]interface{}{"reason": string(rej.Reason)},
		},
	})
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *service.Principal) context.Context {
	return context.WithValue(ctx, AuthPrincipalKey, p)
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *service.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*service.Principal); ok {
		return p
	}
	return nil
}
