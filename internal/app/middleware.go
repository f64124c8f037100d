package app

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/slotfinder/internal/config"
	"github.com/klokku/slotfinder/pkg/calendar_provider"
	"github.com/klokku/slotfinder/pkg/user"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {
	r.Use(userMiddleware(deps.UserService))
	r.Use(requestScopeMiddleware)
}

// requestScopeMiddleware lets all calendar queries of one request share their resolved sources.
func requestScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		next.ServeHTTP(w, req.WithContext(calendar_provider.WithRequestScope(req.Context())))
	})
}

// userMiddleware propagates the X-User-Id header into the request context.
func userMiddleware(userService user.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userIdHeader := req.Header.Get("X-User-Id")
			ctx := req.Context()

			if userIdHeader != "" {
				u, err := userService.GetUserByUid(ctx, userIdHeader)
				if err != nil {
					if errors.Is(err, user.ErrUserNotFound) {
						log.Debugf("user not found: %s", userIdHeader)
						http.Error(w, "user not found", http.StatusForbidden)
						return
					}
					log.Errorf("failed to get user: %v", err)
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				log.Tracef("user found: %s", u.Uid)
				ctx = user.WithUser(ctx, u)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
