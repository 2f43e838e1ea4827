package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/auth"
	"github.com/gosuda/pumpwatch/internal/domain"
)

// Auth validates the bearer token and stores the caller in the request
// context. The role is taken from the stored user so that a role change
// applies to tokens already issued; a deleted user is rejected.
func Auth(jwtSecret string, userRepo domain.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				unauthorized(w)
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, tok)
			if err != nil {
				unauthorized(w)
				return
			}
			actor, err := claims.Actor()
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := userRepo.GetByID(r.Context(), actor.ID)
			if err != nil {
				log.Debug().Err(err).Str("user_id", actor.ID.String()).Msg("middleware.Auth: token user not found")
				unauthorized(w)
				return
			}
			actor.Role = user.Role

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"ok":false,"kind":"unauthorized","message":"missing or invalid credentials"}`, http.StatusUnauthorized)
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}
