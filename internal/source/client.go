// Package source reads tables from a PostgREST-style REST endpoint.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"db-ferry/internal/schema"
)

// Config holds the connection parameters for the REST source.
type Config struct {
	URL     string
	APIKey  string
	Schema  string // sent as Accept-Profile when set
	Timeout time.Duration
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client is stateless per call apart from the cached catalogue and the
// per-table ordering hints.
type Client struct {
	base   *url.URL
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	order   map[string]string
	catalog *catalogue
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source url is empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   base,
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		order:  make(map[string]string),
	}, nil
}

// OrderBy makes every later page request for table sort by the given columns,
// ascending. Offset paging is only stable under a fixed order.
func (c *Client) OrderBy(table string, columns ...string) {
	if len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + ".asc"
	}
	c.mu.Lock()
	c.order[table] = strings.Join(parts, ",")
	c.mu.Unlock()
}

// FetchPage returns up to limit rows of table starting at offset.
func (c *Client) FetchPage(ctx context.Context, table string, offset, limit int) ([]schema.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	c.mu.Lock()
	if o, ok := c.order[table]; ok {
		q.Set("order", o)
	}
	c.mu.Unlock()

	resp, err := c.do(ctx, http.MethodGet, c.tableURL(table, q), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rows, err := DecodeRows(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s page at offset %d: %w", table, offset, err)
	}
	c.logger.Debug("fetched page", "table", table, "offset", offset, "rows", len(rows))
	return rows, nil
}

// FetchCount asks the source for an exact row count of table.
func (c *Client) FetchCount(ctx context.Context, table string) (int64, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", "1")
	resp, err := c.do(ctx, http.MethodHead, c.tableURL(table, q), map[string]string{"Prefer": "count=exact"})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := ParseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Ping checks that the source answers at all.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ParseContentRange extracts the total from a "0-24/3573" or "*/0" header.
func ParseContentRange(header string) (int64, error) {
	i := strings.LastIndex(header, "/")
	if i < 0 {
		return 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	total := header[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("no exact count in Content-Range %q", header)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	return n, nil
}

func (c *Client) tableURL(table string, q url.Values) string {
	return c.base.String() + "/" + url.PathEscape(table) + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, target string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Schema != "" {
		req.Header.Set("Accept-Profile", c.cfg.Schema)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPError{Method: method, URL: target, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}
