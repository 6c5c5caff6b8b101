package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the read-only catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/modules", h.listModules)
	r.Get("/modules/{slug}/menus", h.listMenus)
	r.Get("/modules/{slug}/tree", h.menuTree)
	r.Get("/menus/{slug}", h.getMenu)
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	modules, err := h.service.ListModules(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("list modules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if modules == nil {
		modules = []Module{}
	}
	httpx.JSON(w, http.StatusOK, modules)
}

func (h *Handler) listMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.service.ListMenusByModule(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.logger.Error("list menus", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if menus == nil {
		menus = []Menu{}
	}
	httpx.JSON(w, http.StatusOK, menus)
}

func (h *Handler) menuTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.MenuTree(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.logger.Error("menu tree", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.GetMenu(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, menu)
}
