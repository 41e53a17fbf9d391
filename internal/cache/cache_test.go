package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadPopulatesAndHits(t *testing.T) {
	c := New[string]("test", time.Minute)

	calls := 0
	load := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	got, err := c.Load(context.Background(), "k", load)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "value" {
		t.Fatalf("expected value, got %q", got)
	}

	got, err = c.Load(context.Background(), "k", load)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if got != "value" || calls != 1 {
		t.Fatalf("expected cached value with 1 call, got %q calls=%d", got, calls)
	}
}

func TestLoadCoalescesConcurrentCallers(t *testing.T) {
	c := New[int]("test", time.Minute)

	var calls int64
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return 42, nil
	}

	const callers = 8
	results := make([]int, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Load(context.Background(), "k", load)
		}(i)
	}

	// Let every caller reach the cache before the single load completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != 42 {
			t.Fatalf("caller %d: expected 42, got %d", i, results[i])
		}
	}
}

func TestLoadStaleFallbackOnError(t *testing.T) {
	c := New[string]("test", time.Minute)

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.Set("k", "old")
	current = current.Add(2 * time.Minute) // entry is now expired

	got, err := c.Load(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	})
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if got != "old" {
		t.Fatalf("expected stale value old, got %q", got)
	}
}

func TestLoadWithoutStaleFallbackSurfacesError(t *testing.T) {
	c := New[string]("test", time.Minute).WithoutStaleFallback()

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.Set("k", "old")
	current = current.Add(2 * time.Minute) // entry is now expired

	wantErr := errors.New("upstream down")
	_, err := c.Load(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected upstream error despite stale entry, got %v", err)
	}

	// The entry stays expired; a later successful load replaces it.
	got, err := c.Load(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "new", nil
	})
	if err != nil || got != "new" {
		t.Fatalf("expected recovery on next load, got %q err=%v", got, err)
	}
}

func TestLoadErrorWithoutStalePropagates(t *testing.T) {
	c := New[string]("test", time.Minute)

	wantErr := errors.New("upstream down")
	_, err := c.Load(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	// A failed load must not leave a phantom entry behind.
	if _, ok := c.Get("k"); ok {
		t.Fatal("failed load left an entry in the cache")
	}
}

func TestLoadStalePreferredReturnsStaleAndRefreshes(t *testing.T) {
	c := New[string]("test", time.Minute)

	var mu sync.Mutex
	current := time.Unix(1000, 0)
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	c.Set("k", "old")
	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	refreshed := make(chan struct{})
	got, err := c.LoadStalePreferred(context.Background(), "k", func(ctx context.Context) (string, error) {
		defer close(refreshed)
		return "new", nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "old" {
		t.Fatalf("expected immediate stale value, got %q", got)
	}

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh never ran")
	}

	// The refresh replaces the entry; poll briefly since settle runs after the
	// loader returns.
	deadline := time.Now().Add(time.Second)
	for {
		if v, ok := c.Get("k"); ok && v == "new" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("refreshed value never became visible")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoadStalePreferredDiscardsFailedRefresh(t *testing.T) {
	c := New[string]("test", time.Minute)

	current := time.Unix(1000, 0)
	var mu sync.Mutex
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	c.Set("k", "old")
	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	failed := make(chan struct{})
	got, err := c.LoadStalePreferred(context.Background(), "k", func(ctx context.Context) (string, error) {
		defer close(failed)
		return "", errors.New("refresh failed")
	})
	if err != nil || got != "old" {
		t.Fatalf("expected stale value without error, got %q err=%v", got, err)
	}

	<-failed
	time.Sleep(20 * time.Millisecond)

	// The stale entry must survive the failed refresh for the next fallback.
	got, err = c.LoadStalePreferred(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", errors.New("still failing")
	})
	if err != nil || got != "old" {
		t.Fatalf("stale entry lost after failed refresh: %q err=%v", got, err)
	}
}
