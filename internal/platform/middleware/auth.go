package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// RoleVerifier is the only role permitted to act on pending reports.
const RoleVerifier = "verifier"

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims represents the claims we expect from the token validator.
type TokenClaims struct {
	Subject string
	Role    string
}

type contextKeyVerifier struct{}

// ContextKeyVerifier is exported for use in handlers and tests.
var ContextKeyVerifier = contextKeyVerifier{}

// GetVerifier retrieves the authenticated verifier identity from the context.
func GetVerifier(ctx context.Context) string {
	v, ok := ctx.Value(ContextKeyVerifier).(string)
	if !ok {
		return ""
	}
	return v
}

// RequireVerifier authenticates the bearer token and enforces the verifier
// role. Missing/invalid credentials and an insufficient role are reported
// distinctly so the caller can tell them apart.
func RequireVerifier(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if claims.Role != RoleVerifier {
				logger.WarnContext(ctx, "forbidden - missing verifier role",
					"subject", claims.Subject,
					"role", claims.Role,
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, http.StatusForbidden, "forbidden", "Verifier role required")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyVerifier, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}
