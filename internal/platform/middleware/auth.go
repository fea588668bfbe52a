package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject  string
	OrgID    string
	Category string
}

type contextKeyOrgID struct{}
type contextKeyCategory struct{}
type contextKeySubject struct{}

// GetOrgID retrieves the authenticated organization ID from the context
func GetOrgID(ctx context.Context) string {
	orgID, _ := ctx.Value(contextKeyOrgID{}).(string)
	return orgID
}

// GetCategory retrieves the facility category claim from the context
func GetCategory(ctx context.Context) string {
	category, _ := ctx.Value(contextKeyCategory{}).(string)
	return category
}

func GetSubject(ctx context.Context) string {
	subject, _ := ctx.Value(contextKeySubject{}).(string)
	return subject
}

// WithClaims injects authenticated claims into a context. Useful for handler
// tests that don't run the auth middleware.
func WithClaims(ctx context.Context, claims JWTClaims) context.Context {
	ctx = context.WithValue(ctx, contextKeyOrgID{}, claims.OrgID)
	ctx = context.WithValue(ctx, contextKeyCategory{}, claims.Category)
	ctx = context.WithValue(ctx, contextKeySubject{}, claims.Subject)
	return ctx
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			if claims.OrgID == "" || claims.Category == "" {
				logger.WarnContext(ctx, "unauthorized access - token lacks organization claims", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Token is not bound to an organization"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, *claims)))
		})
	}
}
