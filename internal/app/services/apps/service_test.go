package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davbaghdasaryann/ehvm2/internal/config"
	"github.com/davbaghdasaryann/ehvm2/internal/notion"
)

// fakeUpstream is an in-memory workspace API with call counters.
type fakeUpstream struct {
	pages    []notion.Page
	database *notion.Database
	children map[string][]notion.Block

	queryCalls    atomic.Int64
	retrieveCalls atomic.Int64
	childrenCalls atomic.Int64

	queryErr    error
	retrieveErr error

	mu         sync.Mutex
	lastFilter any
}

func (f *fakeUpstream) QueryDatabase(ctx context.Context, databaseID string, opts notion.QueryOptions) ([]notion.Page, error) {
	f.queryCalls.Add(1)
	f.mu.Lock()
	f.lastFilter = opts.Filter
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if opts.Filter != nil {
		// Slug-filtered lookup: match against the Slug column.
		filter, _ := opts.Filter.(map[string]any)
		equals := ""
		if rich, ok := filter["rich_text"].(map[string]any); ok {
			equals, _ = rich["equals"].(string)
		}
		var out []notion.Page
		for _, page := range f.pages {
			if pageSlug(page) == equals {
				out = append(out, page)
			}
		}
		return out, nil
	}
	return f.pages, nil
}

func (f *fakeUpstream) RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error) {
	f.retrieveCalls.Add(1)
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	if f.database == nil {
		return nil, errors.New("no database")
	}
	return f.database, nil
}

func (f *fakeUpstream) ListBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error) {
	f.childrenCalls.Add(1)
	return f.children[blockID], nil
}

func blockFromJSON(t *testing.T, raw string) notion.Block {
	t.Helper()
	var block notion.Block
	require.NoError(t, json.Unmarshal([]byte(raw), &block))
	return block
}

func summaryPage(t *testing.T, id, name, slug, status string) notion.Page {
	t.Helper()
	return mustPage(t, fmt.Sprintf(`{"object": "page", "id": %q, "properties": {
		"Name": {"type": "title", "title": [{"plain_text": %q}]},
		"Slug": {"type": "rich_text", "rich_text": [{"plain_text": %q}]},
		"Hearing offers": {"type": "status", "status": {"name": %q}}
	}}`, id, name, slug, status))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Notion.Token = "secret"
	cfg.Notion.AppsDatabaseID = "db"
	return *cfg
}

func testDatabase() *notion.Database {
	return &notion.Database{
		ID: "db",
		Properties: map[string]notion.PropertyMeta{
			"Name": {ID: "title", Type: "title"},
			"Slug": {ID: "slug", Type: "rich_text"},
		},
	}
}

func TestAppsMapsAndFiltersSold(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		pages: []notion.Page{
			summaryPage(t, "p1", "Alpha", "alpha", "Open"),
			summaryPage(t, "p2", "Beta", "beta", "Sold"),
			summaryPage(t, "p3", "Gamma", "gamma", "Open"),
		},
	}
	svc := NewService(upstream, testConfig(), nil)

	apps := svc.Apps(context.Background())
	require.Len(t, apps, 2)
	assert.Equal(t, "alpha", apps[0].Slug)
	assert.Equal(t, "gamma", apps[1].Slug)

	// Second read is served from cache.
	svc.Apps(context.Background())
	assert.Equal(t, int64(1), upstream.queryCalls.Load())
	assert.Equal(t, int64(1), upstream.retrieveCalls.Load())
}

func TestAppsWithoutCredentialsServesEmpty(t *testing.T) {
	cfg := config.Default()
	svc := NewService(nil, *cfg, nil)
	assert.Empty(t, svc.Apps(context.Background()))
	assert.Empty(t, svc.Slugs(context.Background()))
	assert.Equal(t, []string{"All"}, svc.Categories(context.Background()))
}

func TestFeaturedAppsFallsBackToLeadingListings(t *testing.T) {
	var pages []notion.Page
	for i := 0; i < 8; i++ {
		pages = append(pages, summaryPage(t, fmt.Sprintf("p%d", i), fmt.Sprintf("App %d", i), fmt.Sprintf("app-%d", i), "Open"))
	}
	upstream := &fakeUpstream{database: testDatabase(), pages: pages}
	svc := NewService(upstream, testConfig(), nil)

	featured := svc.FeaturedApps(context.Background())
	assert.Len(t, featured, 6)
}

func TestAppBySlugHitsSummariesCacheFirst(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		pages:    []notion.Page{summaryPage(t, "p1", "Alpha", "alpha", "Open")},
	}
	svc := NewService(upstream, testConfig(), nil)
	svc.Apps(context.Background())
	queriesAfterWarm := upstream.queryCalls.Load()

	app, ok := svc.AppBySlug(context.Background(), "alpha")
	require.True(t, ok)
	assert.Equal(t, "Alpha", app.Name)
	assert.Equal(t, queriesAfterWarm, upstream.queryCalls.Load())
}

func TestAppBySlugUsesDirectFilterQuery(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		pages:    []notion.Page{summaryPage(t, "p1", "Alpha", "alpha", "Open")},
	}
	svc := NewService(upstream, testConfig(), nil)

	app, ok := svc.AppBySlug(context.Background(), "alpha")
	require.True(t, ok)
	assert.Equal(t, "Alpha", app.Name)

	upstream.mu.Lock()
	filter, isMap := upstream.lastFilter.(map[string]any)
	upstream.mu.Unlock()
	require.True(t, isMap)
	assert.Equal(t, "Slug", filter["property"])
}

func TestAppBySlugCachesMisses(t *testing.T) {
	upstream := &fakeUpstream{database: testDatabase()}
	svc := NewService(upstream, testConfig(), nil)

	_, ok := svc.AppBySlug(context.Background(), "ghost")
	assert.False(t, ok)
	calls := upstream.queryCalls.Load()

	_, ok = svc.AppBySlug(context.Background(), "ghost")
	assert.False(t, ok)
	assert.Equal(t, calls, upstream.queryCalls.Load(), "negative result must be cached")
}

func TestAppBySlugSkipsSoldMatches(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		pages:    []notion.Page{summaryPage(t, "p1", "Beta", "beta", "Sold")},
	}
	svc := NewService(upstream, testConfig(), nil)

	_, ok := svc.AppBySlug(context.Background(), "beta")
	assert.False(t, ok)
}

func TestParsedContentEndToEnd(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		children: map[string][]notion.Block{
			"page-1": {
				blockFromJSON(t, `{"id": "b1", "type": "paragraph", "paragraph": {"rich_text": [
					{"plain_text": "EHVM is a marketplace for profitable mobile apps."}
				]}}`),
				blockFromJSON(t, `{"id": "b2", "type": "heading_1", "heading_1": {"rich_text": [
					{"plain_text": "⭐ 4.8"}
				]}}`),
			},
		},
	}
	svc := NewService(upstream, testConfig(), nil)

	parsed := svc.ParsedContent(context.Background(), "page-1")
	assert.Equal(t, "EHVM is a marketplace for profitable mobile apps.", parsed.About)
	require.NotNil(t, parsed.Rating)
	assert.Equal(t, 4.8, *parsed.Rating)

	// Cached on the second read.
	calls := upstream.childrenCalls.Load()
	svc.ParsedContent(context.Background(), "page-1")
	assert.Equal(t, calls, upstream.childrenCalls.Load())
}

func TestParsedContentCoalescesConcurrentRequests(t *testing.T) {
	upstream := &slowUpstream{release: make(chan struct{})}
	svc := NewService(upstream, testConfig(), nil)

	const callers = 6
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ParsedContent(context.Background(), "page-1")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	assert.Equal(t, int64(1), upstream.rootCalls.Load(), "concurrent parses must share one traversal")
}

func TestSchemaRefreshFailureYieldsEmptyDefault(t *testing.T) {
	upstream := &fakeUpstream{database: testDatabase()}
	cfg := testConfig()
	cfg.Cache.SchemaTTL = 10 * time.Millisecond
	svc := NewService(upstream, cfg, nil)

	warm := svc.schema(context.Background())
	require.NotEmpty(t, warm.FilterPropertyIDs)
	assert.Equal(t, "rich_text", warm.SlugPropertyType)

	time.Sleep(20 * time.Millisecond) // schema entry expires
	upstream.retrieveErr = errors.New("upstream down")

	// Schema metadata is never served stale: a failed refresh degrades to the
	// empty projection, not the expired entry.
	got := svc.schema(context.Background())
	assert.Empty(t, got.FilterPropertyIDs)
	assert.Empty(t, got.SlugPropertyType)
}

func TestAppBySlugMergesParsedContent(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		pages:    []notion.Page{summaryPage(t, "p1", "Alpha", "alpha", "Open")},
		children: map[string][]notion.Block{
			"p1": {
				blockFromJSON(t, `{"id": "b1", "type": "paragraph", "paragraph": {"rich_text": [
					{"plain_text": "Alpha automates invoice reminders for freelancers."}
				]}}`),
				blockFromJSON(t, `{"id": "b2", "type": "heading_1", "heading_1": {"rich_text": [
					{"plain_text": "⭐ 4.2"}
				]}}`),
			},
		},
	}
	svc := NewService(upstream, testConfig(), nil)

	app, ok := svc.AppBySlug(context.Background(), "alpha")
	require.True(t, ok)
	assert.Equal(t, "Alpha automates invoice reminders for freelancers.", app.About)
	assert.Equal(t, 4.2, app.Rating)
	assert.Equal(t, "4.2", app.Highlights.Rating)
	require.NotEmpty(t, app.PageBlocks)
}

func TestRefreshReplacesCaches(t *testing.T) {
	upstream := &fakeUpstream{
		database: testDatabase(),
		pages:    []notion.Page{summaryPage(t, "p1", "Alpha", "alpha", "Open")},
	}
	svc := NewService(upstream, testConfig(), nil)

	require.NoError(t, svc.Refresh(context.Background()))

	upstream.pages = nil // upstream must not be consulted again
	apps := svc.Apps(context.Background())
	require.Len(t, apps, 1)
	assert.Equal(t, "alpha", apps[0].Slug)
}

// slowUpstream blocks root traversals until released, counting how many ran.
type slowUpstream struct {
	release   chan struct{}
	rootCalls atomic.Int64
}

func (s *slowUpstream) QueryDatabase(ctx context.Context, databaseID string, opts notion.QueryOptions) ([]notion.Page, error) {
	return nil, nil
}

func (s *slowUpstream) RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error) {
	return &notion.Database{ID: databaseID}, nil
}

func (s *slowUpstream) ListBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error) {
	if blockID == "page-1" {
		s.rootCalls.Add(1)
		<-s.release
	}
	return nil, nil
}
