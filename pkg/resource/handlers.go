package resource

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/httputil"
	"github.com/unicef-drp/geosight/pkg/permission"
)

// Handlers exposes catalog CRUD for every protected resource type.
// Lists are permission-scoped; writes go through the per-object guards
// inside the stores.
type Handlers struct {
	stores *Stores
}

// NewHandlers creates the catalog handlers
func NewHandlers(stores *Stores) *Handlers {
	return &Handlers{stores: stores}
}

func writeResourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, permission.ErrNotFound):
		httputil.WriteNotFound(w, "resource not found")
	case errors.Is(err, permission.ErrPermissionDenied), errors.Is(err, permission.ErrResourceDenied):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, permission.ErrInvalidLevel):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

// crudFuncs adapts one typed store to the shared handler plumbing. All
// catalog stores expose the same five operations.
type crudFuncs[T any] struct {
	create func(ctx context.Context, user *auth.User, item *T) error
	list   func(ctx context.Context, user *auth.User) ([]T, error)
	get    func(ctx context.Context, user *auth.User, id int64) (*T, error)
	update func(ctx context.Context, user *auth.User, item *T) error
	delete func(ctx context.Context, user *auth.User, id int64) error
	setID  func(item *T, id int64)
}

func registerCRUD[T any](router *mux.Router, prefix string, fns crudFuncs[T]) {
	router.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		items, err := fns.list(r.Context(), auth.UserFromRequest(r))
		if err != nil {
			writeResourceError(w, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		httputil.WriteSuccess(w, items)
	}).Methods("GET")

	router.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromRequest(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		var item T
		if err := httputil.DecodeJSON(r, &item); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if err := fns.create(r.Context(), user, &item); err != nil {
			writeResourceError(w, err)
			return
		}
		httputil.WriteCreated(w, item)
	}).Methods("POST")

	router.HandleFunc(prefix+"/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := httputil.PathInt64(r, "id")
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		item, err := fns.get(r.Context(), auth.UserFromRequest(r), id)
		if err != nil {
			writeResourceError(w, err)
			return
		}
		httputil.WriteSuccess(w, item)
	}).Methods("GET")

	router.HandleFunc(prefix+"/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromRequest(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		id, err := httputil.PathInt64(r, "id")
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		var item T
		if err := httputil.DecodeJSON(r, &item); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		fns.setID(&item, id)
		if err := fns.update(r.Context(), user, &item); err != nil {
			writeResourceError(w, err)
			return
		}
		httputil.WriteSuccess(w, item)
	}).Methods("PUT")

	router.HandleFunc(prefix+"/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromRequest(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		id, err := httputil.PathInt64(r, "id")
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if err := fns.delete(r.Context(), user, id); err != nil {
			writeResourceError(w, err)
			return
		}
		httputil.WriteNoContent(w)
	}).Methods("DELETE")
}

// RegisterRoutes registers catalog CRUD for all resource types
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	registerCRUD(router, "/indicators", crudFuncs[Indicator]{
		create: h.stores.Indicators.Create,
		list:   h.stores.Indicators.List,
		get:    h.stores.Indicators.Get,
		update: h.stores.Indicators.Update,
		delete: h.stores.Indicators.Delete,
		setID:  func(i *Indicator, id int64) { i.ID = id },
	})
	registerCRUD(router, "/context-layers", crudFuncs[ContextLayer]{
		create: h.stores.ContextLayers.Create,
		list:   h.stores.ContextLayers.List,
		get:    h.stores.ContextLayers.Get,
		update: h.stores.ContextLayers.Update,
		delete: h.stores.ContextLayers.Delete,
		setID:  func(c *ContextLayer, id int64) { c.ID = id },
	})
	registerCRUD(router, "/related-tables", crudFuncs[RelatedTable]{
		create: h.stores.RelatedTables.Create,
		list:   h.stores.RelatedTables.List,
		get:    h.stores.RelatedTables.Get,
		update: h.stores.RelatedTables.Update,
		delete: h.stores.RelatedTables.Delete,
		setID:  func(t *RelatedTable, id int64) { t.ID = id },
	})
	registerCRUD(router, "/reference-layer-views", crudFuncs[ReferenceLayerView]{
		create: h.stores.ReferenceLayerViews.Create,
		list:   h.stores.ReferenceLayerViews.List,
		get:    h.stores.ReferenceLayerViews.Get,
		update: h.stores.ReferenceLayerViews.Update,
		delete: h.stores.ReferenceLayerViews.Delete,
		setID:  func(v *ReferenceLayerView, id int64) { v.ID = id },
	})
	registerCRUD(router, "/basemaps", crudFuncs[Basemap]{
		create: h.stores.Basemaps.Create,
		list:   h.stores.Basemaps.List,
		get:    h.stores.Basemaps.Get,
		update: h.stores.Basemaps.Update,
		delete: h.stores.Basemaps.Delete,
		setID:  func(b *Basemap, id int64) { b.ID = id },
	})
	registerCRUD(router, "/styles", crudFuncs[Style]{
		create: h.stores.Styles.Create,
		list:   h.stores.Styles.List,
		get:    h.stores.Styles.Get,
		update: h.stores.Styles.Update,
		delete: h.stores.Styles.Delete,
		setID:  func(s *Style, id int64) { s.ID = id },
	})
	registerCRUD(router, "/harvesters", crudFuncs[Harvester]{
		create: h.stores.Harvesters.Create,
		list:   h.stores.Harvesters.List,
		get:    h.stores.Harvesters.Get,
		update: h.stores.Harvesters.Update,
		delete: h.stores.Harvesters.Delete,
		setID:  func(hv *Harvester, id int64) { hv.ID = id },
	})
	registerCRUD(router, "/cloud-native-gis-layers", crudFuncs[CloudNativeGISLayer]{
		create: h.stores.CloudNativeLayers.Create,
		list:   h.stores.CloudNativeLayers.List,
		get:    h.stores.CloudNativeLayers.Get,
		update: h.stores.CloudNativeLayers.Update,
		delete: h.stores.CloudNativeLayers.Delete,
		setID:  func(l *CloudNativeGISLayer, id int64) { l.ID = id },
	})
}
