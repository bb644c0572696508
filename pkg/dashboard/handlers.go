package dashboard

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/httputil"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// Handlers exposes dashboard CRUD, embed management and the cached
// permission bundle endpoint.
type Handlers struct {
	store *Store
	cache *CacheStore
}

// NewHandlers creates the dashboard handlers
func NewHandlers(store *Store, cache *CacheStore) *Handlers {
	return &Handlers{store: store, cache: cache}
}

// RegisterRoutes registers the dashboard routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboards", h.List).Methods("GET")
	router.HandleFunc("/dashboards", h.Create).Methods("POST")
	router.HandleFunc("/dashboards/{slug}", h.Get).Methods("GET")
	router.HandleFunc("/dashboards/{slug}", h.Update).Methods("PUT")
	router.HandleFunc("/dashboards/{slug}", h.Delete).Methods("DELETE")
	router.HandleFunc("/dashboards/{slug}/embeds/{type}", h.GetEmbeds).Methods("GET")
	router.HandleFunc("/dashboards/{slug}/embeds/{type}", h.SetEmbeds).Methods("PUT")
	router.HandleFunc("/dashboards/{slug}/permissions", h.Permissions).Methods("GET")
}

func writeDashboardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, permission.ErrNotFound):
		httputil.WriteNotFound(w, "dashboard not found")
	case errors.Is(err, permission.ErrPermissionDenied), errors.Is(err, permission.ErrResourceDenied):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, permission.ErrUnknownResourceType):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

func (h *Handlers) bySlug(r *http.Request) (*Dashboard, error) {
	slug, err := httputil.PathString(r, "slug")
	if err != nil {
		return nil, err
	}
	return h.store.GetBySlug(r.Context(), auth.UserFromRequest(r), slug)
}

// List returns the dashboards the caller may list
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	dashboards, err := h.store.List(r.Context(), auth.UserFromRequest(r))
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	if dashboards == nil {
		dashboards = []Dashboard{}
	}
	httputil.WriteSuccess(w, dashboards)
}

// Create makes a new dashboard. Requires the Creator role.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromRequest(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var dash Dashboard
	if err := httputil.DecodeJSON(r, &dash); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if dash.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	if err := h.store.Create(r.Context(), user, &dash); err != nil {
		writeDashboardError(w, err)
		return
	}
	httputil.WriteCreated(w, dash)
}

// Get returns one dashboard by slug. Requires READ.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	dash, err := h.bySlug(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	httputil.WriteSuccess(w, dash)
}

// Update saves dashboard changes. Requires WRITE.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromRequest(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	existing, err := h.bySlug(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}

	var dash Dashboard
	if err := httputil.DecodeJSON(r, &dash); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	dash.ID = existing.ID

	if err := h.store.Update(r.Context(), user, &dash); err != nil {
		writeDashboardError(w, err)
		return
	}
	httputil.WriteSuccess(w, dash)
}

// Delete removes a dashboard. Requires OWNER.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromRequest(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	existing, err := h.bySlug(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), user, existing.ID); err != nil {
		writeDashboardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func embedType(r *http.Request) (permission.ResourceType, error) {
	name, err := httputil.PathString(r, "type")
	if err != nil {
		return "", err
	}
	return permission.ParseResourceType(name)
}

// GetEmbeds lists the embedded resources of one type
func (h *Handlers) GetEmbeds(w http.ResponseWriter, r *http.Request) {
	dash, err := h.bySlug(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	rt, err := embedType(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}

	embeds, err := h.store.Embeds(r.Context(), dash.ID, rt)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	if embeds == nil {
		embeds = []Embed{}
	}
	httputil.WriteSuccess(w, embeds)
}

// SetEmbeds replaces the embedded resources of one type. Requires WRITE.
func (h *Handlers) SetEmbeds(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromRequest(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	dash, err := h.bySlug(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	rt, err := embedType(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}

	var embeds []Embed
	if err := httputil.DecodeJSON(r, &embeds); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.store.SetEmbeds(r.Context(), user, dash.ID, rt, embeds); err != nil {
		writeDashboardError(w, err)
		return
	}
	httputil.WriteSuccess(w, embeds)
}

// Permissions serves the cached permission bundle for the caller
func (h *Handlers) Permissions(w http.ResponseWriter, r *http.Request) {
	dash, err := h.bySlug(r)
	if err != nil {
		writeDashboardError(w, err)
		return
	}

	bundle, err := h.cache.GetCache(r.Context(), dash, auth.UserFromRequest(r))
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	httputil.WriteSuccess(w, bundle)
}
