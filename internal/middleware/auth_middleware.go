package middleware

import (
	"context"
	"net/http"
	"strings"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/logging"
	"vidtube-server/pkg/jwt"
	"vidtube-server/pkg/response"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	UserKey   contextKey = "user"
)

const AccessTokenCookie = "accessToken"

// UserLookup resolves the subject of a verified access token.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware admits a request only if it carries a valid access token for an existing
// user. The token is read from the accessToken cookie, then from the Authorization header.
func AuthMiddleware(issuer *jwt.Issuer, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				response.Unauthorized(w, "unauthorized request")
				return
			}

			claims, err := issuer.VerifyAccessToken(token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("access token rejected", "error", err)
				response.Unauthorized(w, "invalid access token")
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID())
			if err != nil {
				if domain.IsKind(err, domain.ErrNotFound) {
					response.Unauthorized(w, "invalid access token")
					return
				}
				logging.FromContext(r.Context()).Error("failed to load user", "user_id", claims.UserID(), "error", err)
				response.FromError(w, err)
				return
			}

			markUser(r.Context(), user.ID)

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user.ToPublic())
			ctx = logging.WithContext(ctx, logging.FromContext(ctx).With("user_id", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func GetUser(r *http.Request) *domain.PublicUser {
	user, ok := r.Context().Value(UserKey).(*domain.PublicUser)
	if !ok {
		return nil
	}
	return user
}
