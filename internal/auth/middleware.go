package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/studypath/studypath/internal/api"
)

type contextKey string

const SessionKey contextKey = "session"

func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			sess, err := svc.Resolve(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrTokenSeal):
				api.HandleError(w, api.ErrSessionExpired)
				return
			case errors.Is(err, ErrInvalidToken):
				api.HandleError(w, api.ErrInvalidToken)
				return
			default:
				slog.Error("auth: resolving session", "error", err)
				api.HandleError(w, api.ErrInternalServer)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSession(ctx context.Context) *Session {
	sess, _ := ctx.Value(SessionKey).(*Session)
	return sess
}
