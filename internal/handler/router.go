package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router with the global middleware stack. Reads
// are public; writes are gated on the permissions of the acting user.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.Logger))
	r.Use(CORS)

	r.Use(h.Authenticate)

	r.Get("/health", HealthCheck)

	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.ListRoles)
		r.Get("/{id}", h.GetRole)
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(model.PermissionManageACL))
			r.Post("/", h.CreateRole)
			r.Put("/{id}", h.UpdateRole)
			r.Delete("/{id}", h.DeleteRole)
		})
	})

	r.Route("/subevents", func(r chi.Router) {
		r.Get("/", h.ListSubevents)
		r.Group(func(r chi.Router) {
			r.Use(RequirePermission(model.PermissionManagePrograms))
			r.Post("/", h.CreateSubevent)
			r.Put("/{id}/implicit", h.SetImplicitSubevent)
			r.Delete("/{id}", h.DeleteSubevent)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(RequireSelfOrPermission(model.PermissionManageUsers))
			r.Get("/", h.GetUser)
			r.Post("/registration", h.Register)
			r.Put("/roles", h.UpdateRoles)
			r.Put("/subevents", h.UpdateSubevents)
			r.Post("/cancel", h.CancelRegistration)
		})
	})

	r.Route("/applications", func(r chi.Router) {
		r.Post("/{id}/cancel", h.CancelApplication)
		r.With(RequirePermission(model.PermissionManagePayments)).Post("/{id}/pay", h.PayApplication)
	})

	r.With(RequirePermission(model.PermissionManageUsers)).Post("/ticket-checks", h.CheckTicket)

	r.Route("/actions/maturity", func(r chi.Router) {
		r.Use(RequirePermission(model.PermissionManageUsers))
		r.Post("/cancel-applications", h.CancelOverdue)
		r.Post("/send-reminders", h.SendReminders)
	})

	return r
}

// Logger is a structured access log middleware.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}

// CORS allows any origin; the API carries no cookies.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+ActorHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
