// Package apps implements the listing catalog service: it keeps the upstream
// database and parsed page content behind layered TTL caches and serves
// summaries, per-slug lookups, and parsed details.
package apps

import (
	"context"
	"fmt"
	"time"

	"github.com/davbaghdasaryann/ehvm2/internal/app/domain/catalog"
	"github.com/davbaghdasaryann/ehvm2/internal/app/services/content"
	"github.com/davbaghdasaryann/ehvm2/internal/cache"
	"github.com/davbaghdasaryann/ehvm2/internal/config"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

// Upstream is the slice of the workspace API the service depends on.
type Upstream interface {
	QueryDatabase(ctx context.Context, databaseID string, opts notion.QueryOptions) ([]notion.Page, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error)
	ListBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

// schemaConfig is the cached projection of the database schema: the property
// IDs used to narrow queries and the type of the Slug column.
type schemaConfig struct {
	FilterPropertyIDs []string
	SlugPropertyType  string
}

// detailEntry is a per-slug lookup result; a nil App records a known miss so
// repeated lookups of a bad slug don't hammer the upstream.
type detailEntry struct {
	App *catalog.App
}

// Service serves the listing catalog.
type Service struct {
	upstream    Upstream
	databaseID  string
	concurrency int
	log         *logger.Logger

	schemaCache    *cache.Cache[schemaConfig]
	pagesCache     *cache.Cache[[]notion.Page]
	summariesCache *cache.Cache[[]catalog.App]
	detailCache    *cache.Cache[detailEntry]
	parsedCache    *cache.Cache[catalog.ParsedContent]

	detailTTL time.Duration
	missTTL   time.Duration
}

// NewService wires the catalog service. A nil upstream is allowed: the
// service degrades to serving an empty catalog so the site stays up without
// credentials.
func NewService(upstream Upstream, cfg config.Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("apps")
	}
	return &Service{
		upstream:       upstream,
		databaseID:     cfg.Notion.AppsDatabaseID,
		concurrency:    cfg.Content.TraversalConcurrency,
		log:            log,
		schemaCache:    cache.New[schemaConfig]("schema", cfg.Cache.SchemaTTL).WithoutStaleFallback(),
		pagesCache:     cache.New[[]notion.Page]("pages", cfg.Cache.PagesTTL),
		summariesCache: cache.New[[]catalog.App]("summaries", cfg.Cache.SummariesTTL),
		detailCache:    cache.New[detailEntry]("detail", cfg.Cache.DetailTTL),
		parsedCache:    cache.New[catalog.ParsedContent]("parsed", cfg.Cache.ParsedTTL),
		detailTTL:      cfg.Cache.DetailTTL,
		missTTL:        cfg.Cache.MissTTL,
	}
}

// ListBlockChildren lets the service act as the block source for the content
// parser.
func (s *Service) ListBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error) {
	if s.upstream == nil {
		return nil, nil
	}
	return s.upstream.ListBlockChildren(ctx, blockID)
}

// schema returns the cached database schema projection. Schema failures are
// soft: queries simply run without property narrowing.
func (s *Service) schema(ctx context.Context) schemaConfig {
	if s.upstream == nil || s.databaseID == "" {
		return schemaConfig{}
	}

	cfg, err := s.schemaCache.Load(ctx, "schema", func(ctx context.Context) (schemaConfig, error) {
		db, err := s.upstream.RetrieveDatabase(ctx, s.databaseID)
		if err != nil {
			return schemaConfig{}, err
		}
		out := schemaConfig{}
		for _, meta := range db.Properties {
			if meta.ID != "" {
				out.FilterPropertyIDs = append(out.FilterPropertyIDs, meta.ID)
			}
		}
		if slugMeta, ok := db.Properties["Slug"]; ok {
			out.SlugPropertyType = slugMeta.Type
		}
		return out, nil
	})
	if err != nil {
		s.log.WithError(err).Error("failed to read database schema")
		return schemaConfig{}
	}
	return cfg
}

// pages returns all database pages, fetching at most once per TTL window
// across concurrent callers.
func (s *Service) pages(ctx context.Context) []notion.Page {
	if s.upstream == nil || s.databaseID == "" {
		s.log.Warn("missing catalog credentials, serving empty listing set")
		return nil
	}

	pages, err := s.pagesCache.Load(ctx, "pages", func(ctx context.Context) ([]notion.Page, error) {
		schema := s.schema(ctx)
		return s.upstream.QueryDatabase(ctx, s.databaseID, notion.QueryOptions{
			FilterProperties: schema.FilterPropertyIDs,
		})
	})
	if err != nil {
		s.log.WithError(err).Error("failed to fetch listing pages")
		return nil
	}
	return pages
}

// Apps returns every live listing summary.
func (s *Service) Apps(ctx context.Context) []catalog.App {
	apps, err := s.summariesCache.Load(ctx, "summaries", func(ctx context.Context) ([]catalog.App, error) {
		var out []catalog.App
		for _, page := range s.pages(ctx) {
			if app := mapPageToApp(page); app != nil {
				out = append(out, *app)
			}
		}
		return out, nil
	})
	if err != nil {
		s.log.WithError(err).Error("failed to build listing summaries")
		return nil
	}
	return apps
}

// FeaturedApps returns the listings flagged as featured, or the first six
// when nothing is flagged.
func (s *Service) FeaturedApps(ctx context.Context) []catalog.App {
	apps := s.Apps(ctx)
	var featured []catalog.App
	for _, app := range apps {
		if app.Featured {
			featured = append(featured, app)
		}
	}
	if len(featured) > 0 {
		return featured
	}
	if len(apps) > 6 {
		return apps[:6]
	}
	return apps
}

// Categories returns "All" plus the distinct listing categories in first-seen
// order.
func (s *Service) Categories(ctx context.Context) []string {
	seen := map[string]bool{}
	out := []string{"All"}
	for _, app := range s.Apps(ctx) {
		if app.Category == "" || seen[app.Category] {
			continue
		}
		seen[app.Category] = true
		out = append(out, app.Category)
	}
	return out
}

// Slugs returns every live listing slug.
func (s *Service) Slugs(ctx context.Context) []string {
	apps := s.Apps(ctx)
	slugs := make([]string, 0, len(apps))
	for _, app := range apps {
		slugs = append(slugs, app.Slug)
	}
	return slugs
}

// AppBySlug resolves one listing. Misses are cached briefly so unknown slugs
// don't trigger an upstream query per request.
func (s *Service) AppBySlug(ctx context.Context, slug string) (*catalog.App, bool) {
	if entry, ok := s.detailCache.Get(slug); ok {
		return entry.App, entry.App != nil
	}

	if apps, ok := s.summariesCache.Get("summaries"); ok {
		for _, app := range apps {
			if app.Slug == slug {
				detail := s.enrich(ctx, &app)
				s.detailCache.SetTTL(slug, detailEntry{App: detail}, s.detailTTL)
				return detail, true
			}
		}
	}

	page := s.findPageBySlug(ctx, slug)
	if page == nil {
		s.detailCache.SetTTL(slug, detailEntry{}, s.missTTL)
		return nil, false
	}

	app := mapPageToApp(*page)
	if app == nil {
		s.detailCache.SetTTL(slug, detailEntry{}, s.missTTL)
		return nil, false
	}

	detail := s.enrich(ctx, app)
	s.detailCache.SetTTL(slug, detailEntry{App: detail}, s.detailTTL)
	return detail, true
}

// enrich overlays parsed page content onto a summary. Database columns win
// for store links; page content wins everywhere it produced a value.
func (s *Service) enrich(ctx context.Context, app *catalog.App) *catalog.App {
	if app.NotionPageID == "" {
		return app
	}
	parsed := s.ParsedContent(ctx, app.NotionPageID)

	out := *app
	if parsed.About != "" {
		out.About = parsed.About
	}
	if parsed.ScreenshotsImage != "" {
		out.ScreenshotsImage = parsed.ScreenshotsImage
	}
	if out.AppStoreLink == "" {
		out.AppStoreLink = parsed.AppStoreLink
	}
	if out.PlayStoreLink == "" {
		out.PlayStoreLink = parsed.PlayStoreLink
	}
	if len(parsed.Opportunities) > 0 {
		out.Opportunities = parsed.Opportunities
	}
	if len(parsed.FAQs) > 0 {
		out.FAQs = parsed.FAQs
	}
	if parsed.UserAcquisition != nil {
		out.UserAcquisition = *parsed.UserAcquisition
	}
	if parsed.ContactName != "" {
		out.Contact.Name = parsed.ContactName
	}
	if parsed.ContactImage != "" {
		out.Contact.Image = parsed.ContactImage
	}
	if parsed.ContactEmail != "" {
		out.Contact.Email = parsed.ContactEmail
	}
	if parsed.ContactPhone != "" {
		out.Contact.Phone = parsed.ContactPhone
	}
	if parsed.HighlightsMRR != "" {
		out.Highlights.MRR = parsed.HighlightsMRR
	}
	if parsed.HighlightsRating != "" {
		out.Highlights.Rating = parsed.HighlightsRating
	}
	if parsed.RatingLabel != "" {
		out.Highlights.RatingLabel = parsed.RatingLabel
	}
	if parsed.Rating != nil {
		out.Rating = *parsed.Rating
	}
	out.DetailBlocks = parsed.DetailBlocks
	out.PageBlocks = parsed.PageBlocks
	return &out
}

// findPageBySlug tries a direct column-filtered query first, then falls back
// to scanning the cached page list.
func (s *Service) findPageBySlug(ctx context.Context, slug string) *notion.Page {
	if s.upstream != nil && s.databaseID != "" {
		if page := s.queryPageBySlug(ctx, slug); page != nil {
			return page
		}
	}

	for _, page := range s.pages(ctx) {
		if !isSoldPage(page) && pageSlug(page) == slug {
			return &page
		}
	}
	return nil
}

func (s *Service) queryPageBySlug(ctx context.Context, slug string) *notion.Page {
	schema := s.schema(ctx)

	var filter map[string]any
	switch schema.SlugPropertyType {
	case "title":
		filter = map[string]any{"property": "Slug", "title": map[string]any{"equals": slug}}
	case "rich_text":
		filter = map[string]any{"property": "Slug", "rich_text": map[string]any{"equals": slug}}
	default:
		return nil
	}

	pages, err := s.upstream.QueryDatabase(ctx, s.databaseID, notion.QueryOptions{
		FilterProperties: schema.FilterPropertyIDs,
		Filter:           filter,
		PageSize:         5,
		Limit:            5,
	})
	if err != nil {
		// The scan fallback still has a shot at resolving the slug.
		s.log.WithError(err).WithField("slug", slug).Warn("slug-filtered query failed")
		return nil
	}

	for _, page := range pages {
		if !isSoldPage(page) {
			return &page
		}
	}
	return nil
}

// ParsedContent returns everything extracted from a listing's page body.
// Parse failures degrade to empty content; an expired entry is served
// immediately while a background refresh replaces it.
func (s *Service) ParsedContent(ctx context.Context, pageID string) catalog.ParsedContent {
	if s.upstream == nil {
		return catalog.ParsedContent{}
	}

	parsed, err := s.parsedCache.LoadStalePreferred(ctx, pageID, func(ctx context.Context) (catalog.ParsedContent, error) {
		return content.Parse(ctx, s, pageID, s.concurrency)
	})
	if err != nil {
		s.log.WithError(err).WithField("page_id", pageID).Error("failed to parse listing page")
		return catalog.ParsedContent{}
	}
	return parsed
}

// Refresh re-fetches the page list and rebuilds the summaries, replacing both
// cache tiers. Used by the background refresher to keep reads warm.
func (s *Service) Refresh(ctx context.Context) error {
	if s.upstream == nil || s.databaseID == "" {
		return nil
	}

	schema := s.schema(ctx)
	pages, err := s.upstream.QueryDatabase(ctx, s.databaseID, notion.QueryOptions{
		FilterProperties: schema.FilterPropertyIDs,
	})
	if err != nil {
		return fmt.Errorf("refresh listing pages: %w", err)
	}

	var apps []catalog.App
	for _, page := range pages {
		if app := mapPageToApp(page); app != nil {
			apps = append(apps, *app)
		}
	}

	s.pagesCache.Set("pages", pages)
	s.summariesCache.Set("summaries", apps)
	s.log.WithField("listings", len(apps)).Debug("catalog refreshed")
	return nil
}
