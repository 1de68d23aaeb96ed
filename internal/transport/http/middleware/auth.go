package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"timeoff/internal/domain/auth"
	"timeoff/internal/transport/http/api"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// StaffResolver maps an authenticated user onto their staff record.
type StaffResolver interface {
	ResolveStaffID(ctx context.Context, tenantID, userID string) (int64, bool, error)
}

// Auth verifies a bearer token when one is present and stores the caller's
// identity in the context. Requests without a valid token pass through
// anonymous; RequireIdentity rejects them. resolver may be nil.
func Auth(secret string, resolver StaffResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			identity := auth.Identity{UserID: claims.UserID, TenantID: claims.TenantID, Roles: claims.Roles}
			if resolver != nil {
				staffID, ok, err := resolver.ResolveStaffID(r.Context(), claims.TenantID, claims.UserID)
				if err != nil {
					slog.Error("resolve staff member failed", "userId", claims.UserID, "tenantId", claims.TenantID, "err", err)
					api.Fail(w, http.StatusServiceUnavailable, "identity_unavailable", "could not resolve caller", GetRequestID(r.Context()))
					return
				}
				if ok {
					identity.StaffMemberID = &staffID
				}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireIdentity answers 401 for anonymous requests.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetIdentity(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

func GetIdentity(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return identity, ok
}
