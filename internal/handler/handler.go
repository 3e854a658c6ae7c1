// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/eligibility"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/maturity"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/rolegraph"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ActorHeader carries the id of the acting user.
const ActorHeader = "X-Actor-ID"

// SettingsFunc returns the settings snapshot for one request.
type SettingsFunc func() (config.Settings, error)

// Handler holds all HTTP handlers for the registration API.
type Handler struct {
	Roles        *service.RoleService
	Subevents    *service.SubeventService
	Users        *service.UserService
	Registration *service.RegistrationService
	Tickets      *service.TicketService
	Sweeper      *maturity.Sweeper
	Settings     SettingsFunc
	Logger       *slog.Logger
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) (config.Settings, bool) {
	s, err := h.Settings()
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "load settings", "err", err)
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return config.Settings{}, false
	}
	return s, true
}

// fail maps service and repository errors to HTTP responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := eligibility.AsValidation(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{
			Error:       ve.Error(),
			Kind:        string(ve.Kind),
			Subject:     ve.Subject,
			Conflicting: ve.Conflicting,
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, rolegraph.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrRoleInUse),
		errors.Is(err, repository.ErrSubeventInUse),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrApplicationPaid),
		errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrNotRegistered),
		errors.Is(err, service.ErrCapacityBelowHolders),
		errors.Is(err, service.ErrImplicitSubevent),
		errors.Is(err, service.ErrNotAttending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Roles ────────────────────────────────────────────────────────────────────

// ListRoles handles GET /roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Roles.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if roles == nil {
		roles = []model.Role{}
	}
	writeJSON(w, http.StatusOK, roles)
}

// GetRole handles GET /roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.Roles.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// CreateRole handles POST /roles
// Incompatible edges are stored symmetrically.
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req model.RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	role, err := h.Roles.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// UpdateRole handles PUT /roles/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	role, err := h.Roles.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /roles/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Roles.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Subevents ────────────────────────────────────────────────────────────────

// ListSubevents handles GET /subevents
func (h *Handler) ListSubevents(w http.ResponseWriter, r *http.Request) {
	subevents, err := h.Subevents.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if subevents == nil {
		subevents = []model.Subevent{}
	}
	writeJSON(w, http.StatusOK, subevents)
}

// CreateSubevent handles POST /subevents
func (h *Handler) CreateSubevent(w http.ResponseWriter, r *http.Request) {
	var req model.SubeventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := h.Subevents.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// SetImplicitSubevent handles PUT /subevents/{id}/implicit
func (h *Handler) SetImplicitSubevent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := h.Subevents.SetImplicit(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubevent handles DELETE /subevents/{id}
func (h *Handler) DeleteSubevent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Subevents.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Users and registration ───────────────────────────────────────────────────

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	usr, err := h.Users.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, usr)
}

// GetUser handles GET /users/{id}
// Returns the user with roles, subevents and application history.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	usr, err := h.Users.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usr)
}

// Register handles POST /users/{id}/registration
// Registrations are capacity-safe; ApprovedImmediately is honoured only
// for admin actors.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	actor := actorFrom(r.Context())
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}

	usr, err := h.Registration.Register(r.Context(), settings, service.RegisterInput{
		UserID:              id,
		RoleIDs:             req.Roles,
		SubeventIDs:         req.Subevents,
		ApprovedImmediately: req.ApprovedImmediately && actor.Admin,
	}, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, usr)
}

// UpdateRoles handles PUT /users/{id}/roles
func (h *Handler) UpdateRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.UpdateRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	actor := actorFrom(r.Context())
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}

	usr, err := h.Registration.UpdateRoles(r.Context(), settings, id, req.Roles, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usr)
}

// UpdateSubevents handles PUT /users/{id}/subevents
func (h *Handler) UpdateSubevents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.UpdateSubeventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	actor := actorFrom(r.Context())
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}

	usr, err := h.Registration.UpdateSubevents(r.Context(), settings, id, req.Subevents, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usr)
}

// CancelRegistration handles POST /users/{id}/cancel
// The body state defaults to CANCELED.
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := cancelRequest(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r.Context())
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}

	usr, err := h.Registration.CancelRegistration(r.Context(), settings, id, req.State, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usr)
}

func cancelRequest(w http.ResponseWriter, r *http.Request) (model.CancelRequest, bool) {
	req := model.CancelRequest{State: model.StateCanceled}
	if r.ContentLength == 0 {
		return req, true
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	if req.State == "" {
		req.State = model.StateCanceled
	}
	return req, true
}

// ─── Applications ─────────────────────────────────────────────────────────────

// CancelApplication handles POST /applications/{id}/cancel
// Canceling a roles application cancels the whole registration. Users may
// cancel their own applications; others need users.manage.
func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := cancelRequest(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r.Context())
	if !actor.Can(model.PermissionManageUsers) {
		app, err := h.Users.Application(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !actor.Is(app.UserID) {
			writeError(w, http.StatusForbidden, "missing permission "+model.PermissionManageUsers)
			return
		}
	}
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}

	usr, err := h.Registration.CancelApplication(r.Context(), settings, id, req.State, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usr)
}

// PayApplication handles POST /applications/{id}/pay
func (h *Handler) PayApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.PaymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	actor := actorFrom(r.Context())

	app, err := h.Registration.MarkPaid(r.Context(), id, req.PaymentDate, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// ─── Ticket checks ────────────────────────────────────────────────────────────

// CheckTicket handles POST /ticket-checks
// Records the scan and returns earlier scans of the same ticket.
func (h *Handler) CheckTicket(w http.ResponseWriter, r *http.Request) {
	var req model.TicketCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.Tickets.CheckTicket(r.Context(), req.UserID, req.SubeventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ─── Maturity actions ─────────────────────────────────────────────────────────

// CancelOverdue handles POST /actions/maturity/cancel-applications
func (h *Handler) CancelOverdue(w http.ResponseWriter, r *http.Request) {
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}
	rep, err := h.Sweeper.CancelOverdue(r.Context(), settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// SendReminders handles POST /actions/maturity/send-reminders
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	settings, ok := h.settings(w, r)
	if !ok {
		return
	}
	rep, err := h.Sweeper.SendReminders(r.Context(), settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
