// Package notion implements the client for the upstream workspace-document
// API: paginated database queries, schema retrieval, and recursive block
// listing with retry and backoff.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/davbaghdasaryann/ehvm2/internal/app/metrics"
	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

const (
	defaultPageSize = 100
	maxAttempts     = 5
)

// APIError is a non-2xx response from the workspace API.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("notion: status %d: %s", e.Status, e.Message)
}

// Config configures the workspace API client.
type Config struct {
	Token   string
	BaseURL string
	// Version is the API revision sent on every request.
	Version string
	// RequestsPerSecond paces outgoing calls; zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *logger.Logger
}

// Client talks to the workspace API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	version    string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("notion: token is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("notion: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("notion: parse base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	version := cfg.Version
	if version == "" {
		version = "2022-06-28"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("notion-client")
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		version:    version,
		limiter:    limiter,
		log:        log,
	}, nil
}

// QueryOptions narrows a database query.
type QueryOptions struct {
	// FilterProperties restricts the properties returned per page.
	FilterProperties []string
	// Filter is an optional property filter object, marshalled as-is.
	Filter any
	// PageSize overrides the default page size for each request.
	PageSize int
	// Limit stops pagination after this many results; zero means all.
	Limit int
}

// QueryDatabase returns records of the database, transparently paging through
// continuation cursors until the source reports no more results.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, opts QueryOptions) ([]Page, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := url.Values{}
	for _, id := range opts.FilterProperties {
		query.Add("filter_properties", id)
	}

	var pages []Page
	var cursor *string
	for {
		body := map[string]any{"page_size": pageSize}
		if cursor != nil {
			body["start_cursor"] = *cursor
		}
		if opts.Filter != nil {
			body["filter"] = opts.Filter
		}

		var resp queryResponse
		err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", query, body, &resp)
		metrics.RecordUpstreamRequest("query_database", err)
		if err != nil {
			return nil, fmt.Errorf("query database %s: %w", databaseID, err)
		}

		for _, page := range resp.Results {
			if page.Object != "" && page.Object != "page" {
				continue
			}
			pages = append(pages, page)
		}

		if opts.Limit > 0 && len(pages) >= opts.Limit {
			return pages[:opts.Limit], nil
		}
		if !resp.HasMore || resp.NextCursor == nil {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// RetrieveDatabase returns the database schema metadata.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	err := c.do(ctx, http.MethodGet, "/v1/databases/"+databaseID, nil, nil, &db)
	metrics.RecordUpstreamRequest("retrieve_database", err)
	if err != nil {
		return nil, fmt.Errorf("retrieve database %s: %w", databaseID, err)
	}
	return &db, nil
}

// ListBlockChildren returns the complete ordered list of a block's immediate
// children, paging until the continuation cursor is exhausted.
func (c *Client) ListBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	var cursor *string
	for {
		query := url.Values{"page_size": {strconv.Itoa(defaultPageSize)}}
		if cursor != nil {
			query.Set("start_cursor", *cursor)
		}

		var resp childrenResponse
		err := c.do(ctx, http.MethodGet, "/v1/blocks/"+blockID+"/children", query, nil, &resp)
		metrics.RecordUpstreamRequest("list_block_children", err)
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", blockID, err)
		}

		blocks = append(blocks, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil {
			return blocks, nil
		}
		cursor = resp.NextCursor
	}
}

// do executes one API call with retry. Transient failures back off per error
// class, honoring an explicit Retry-After signal; the last error surfaces
// after the attempt ceiling.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordUpstreamRetry()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay(lastErr, attempt-1)):
			}
		}

		lastErr = c.doOnce(ctx, method, path, query, payload, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		c.log.WithError(lastErr).
			WithField("attempt", attempt+1).
			WithField("path", path).
			Warn("upstream request failed, retrying")
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.ParseFloat(header, 64); err == nil && seconds > 0 {
			apiErr.RetryAfter = time.Duration(seconds * float64(time.Second))
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		apiErr.Code = wire.Code
		apiErr.Message = wire.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// retryable reports whether the request may be attempted again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryDelay picks the backoff for a failed attempt: an explicit retry-after
// signal wins; rate limiting steps linearly by ~1s, server unavailability
// doubles from 300ms, everything else steps by 250ms.
func retryDelay(err error, attempt int) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return apiErr.RetryAfter
		}
		if apiErr.Status == http.StatusTooManyRequests || apiErr.Code == "rate_limited" {
			return time.Duration(attempt+1) * time.Second
		}
		switch {
		case apiErr.Code == "service_unavailable",
			apiErr.Status == http.StatusInternalServerError,
			apiErr.Status == http.StatusBadGateway,
			apiErr.Status == http.StatusServiceUnavailable:
			return 300 * time.Millisecond << attempt
		}
	}
	return time.Duration(attempt+1) * 250 * time.Millisecond
}
