// Package httpapi exposes the catalog over JSON HTTP. It is a thin layer:
// every response is a cached service read, no business logic lives here.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/app/metrics"
	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

// detailsCacheControl lets downstream caches serve details for five minutes
// and fall back to a stale copy for a day while revalidating.
const detailsCacheControl = "public, max-age=300, stale-while-revalidate=86400"

// Catalog is the service surface the API serves.
type Catalog interface {
	Apps(ctx context.Context) []catalog.App
	FeaturedApps(ctx context.Context) []catalog.App
	Categories(ctx context.Context) []string
	AppBySlug(ctx context.Context, slug string) (*catalog.App, bool)
	ParsedContent(ctx context.Context, pageID string) catalog.ParsedContent
}

type handler struct {
	catalog Catalog
	log     *logger.Logger
}

// NewHandler builds the HTTP routing tree for the catalog API.
func NewHandler(cat Catalog, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{catalog: cat, log: log}

	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/apps", h.handleListApps)
		r.Get("/categories", h.handleCategories)
		r.Get("/apps/{slug}", h.handleAppBySlug)
		r.Get("/apps/{slug}/details", h.handleAppDetails)
	})
	return metrics.InstrumentHandler(r)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleListApps(w http.ResponseWriter, r *http.Request) {
	var apps []catalog.App
	if featured, _ := strconv.ParseBool(r.URL.Query().Get("featured")); featured {
		apps = h.catalog.FeaturedApps(r.Context())
	} else {
		apps = h.catalog.Apps(r.Context())
	}
	if apps == nil {
		apps = []catalog.App{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

func (h *handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.catalog.Categories(r.Context())})
}

func (h *handler) handleAppBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	app, ok := h.catalog.AppBySlug(r.Context(), slug)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("app not found"))
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// handleAppDetails serves the normalized page-content blocks. Failures and
// unknown identifiers degrade to an empty block list so the page shell always
// renders.
func (h *handler) handleAppDetails(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("pageId")
	if pageID == "" {
		if app, ok := h.catalog.AppBySlug(r.Context(), chi.URLParam(r, "slug")); ok {
			pageID = app.NotionPageID
		}
	}

	blocks := []catalog.ContentBlock{}
	if pageID != "" {
		if parsed := h.catalog.ParsedContent(r.Context(), pageID); parsed.PageBlocks != nil {
			blocks = parsed.PageBlocks
		}
	}

	w.Header().Set("Cache-Control", detailsCacheControl)
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
