package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/services"
)

type sessionKey struct{}

// WithSession attaches the session named by the cookie, if any, to the
// request context
func WithSession(auth *services.AuthService, cookieName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(cookieName)
		if err == nil && c.Value != "" {
			sess, err := auth.Session(r.Context(), c.Value)
			switch {
			case err == nil:
				r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess))
			case !errors.Is(err, models.ErrUnauthorized):
				slog.Warn("Session lookup failed", "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFrom returns the request's session or nil
func SessionFrom(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey{}).(*models.Session)
	return sess
}

// requestUser is the session user, or the shared anonymous user. A
// user_id sent by the client is never trusted over HTTP.
func requestUser(r *http.Request) string {
	if sess := SessionFrom(r.Context()); sess != nil {
		return sess.UserID
	}
	return services.AnonymousUser
}
