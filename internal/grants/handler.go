package grants

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// GuardPort gates permission-administration routes without importing the
// guard implementation.
type GuardPort interface {
	Require(module, menu, action string) func(http.Handler) http.Handler
}

// Handler wires the permission API endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	aggregator *Aggregator
	guard      GuardPort
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance. guard may be nil, in which
// case the routes mount unprotected (tests, seed tooling).
func NewHandler(logger *slog.Logger, service *Service, aggregator *Aggregator, guard GuardPort) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		aggregator: aggregator,
		guard:      guard,
		validator:  validator.New(),
	}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require("administration", "permissions", "view"))
		}
		r.Get("/by-role/{role}", h.capabilitiesByRole)
	})
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require("administration", "permissions", "edit"))
		}
		r.Post("/", h.applyGrant)
		r.Delete("/{grantID}", h.deleteGrant)
	})
}

type applyGrantRequest struct {
	Role       string   `json:"role" validate:"required"`
	MenuID     string   `json:"menuId" validate:"required"`
	Actions    []string `json:"actions" validate:"required"`
	ActionType string   `json:"actionType" validate:"omitempty,oneof=add replace remove"`
}

func (h *Handler) applyGrant(w http.ResponseWriter, r *http.Request) {
	var req applyGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		httpx.FieldProblem(w, fields)
		return
	}

	grant, err := h.service.ApplyGrant(r.Context(), ApplyGrantInput{
		Role:       req.Role,
		MenuID:     req.MenuID,
		Actions:    req.Actions,
		ActionType: req.ActionType,
		ActorID:    actorFromContext(r),
	})
	if err != nil {
		h.logger.Warn("apply grant", slog.String("role", req.Role), slog.String("menu", req.MenuID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) capabilitiesByRole(w http.ResponseWriter, r *http.Request) {
	caps, err := h.aggregator.Capabilities(r.Context(), chi.URLParam(r, "role"))
	if err != nil {
		h.logger.Error("aggregate capabilities", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, caps)
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "grantID")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "grant id must be a UUID")
		return
	}
	if err := h.service.DeleteGrant(r.Context(), id, actorFromContext(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func actorFromContext(r *http.Request) string {
	if p := shared.PrincipalFromContext(r.Context()); p != nil && p.Email != "" {
		return p.Email
	}
	return ""
}
