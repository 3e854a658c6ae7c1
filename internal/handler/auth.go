package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type actorKey struct{}

// actorFrom returns the actor stored by Authenticate, or an anonymous one.
func actorFrom(ctx context.Context) service.Actor {
	a, _ := ctx.Value(actorKey{}).(service.Actor)
	return a
}

// Authenticate resolves the X-Actor-ID header into a service.Actor. A
// missing header is an anonymous actor; an unknown user is rejected.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(ActorHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+ActorHeader+" header")
			return
		}
		a, err := h.Users.Actor(r.Context(), &id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown actor")
				return
			}
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
	})
}

// RequirePermission rejects actors that were not granted perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !actorFrom(r.Context()).Can(perm) {
				writeError(w, http.StatusForbidden, "missing permission "+perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrPermission lets the user named by the {id} path parameter
// act on their own resource; anyone else needs perm.
func RequireSelfOrPermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := actorFrom(r.Context())
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if a.Can(perm) || (err == nil && a.Is(id)) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusForbidden, "missing permission "+perm)
		})
	}
}
