// Package search wraps the Google Custom Search JSON API behind a small
// keyword-query interface. Search is evidence, not a dependency: callers
// treat any failure here as "no results" and carry on.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shpitdev/bizcard-pipeline/internal/redact"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Result is one ranked web hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher returns up to n ranked results for a keyword query. A nil slice
// with a nil error means the query matched nothing (or search is disabled).
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Disabled is the Searcher used when search credentials are not configured.
type Disabled struct{}

func (Disabled) Search(context.Context, string, int) ([]Result, error) {
	return nil, nil
}

type Config struct {
	APIKey string
	CSEID  string

	// BaseURL overrides the API endpoint for tests.
	BaseURL string

	// RateLimitRPS throttles outbound queries across the process. <=0 disables.
	RateLimitRPS float64

	Timeout time.Duration
}

// Client queries the Custom Search JSON API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	cseID   string
	limiter *rate.Limiter
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.CSEID) == "" {
		return nil, fmt.Errorf("search api key and cse id are required")
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse search base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Client{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		cseID:   strings.TrimSpace(cfg.CSEID),
		limiter: limiter,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type searchResponse struct {
	Items []Result `json:"items"`
}

func (c *Client) Search(ctx context.Context, query string, n int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if n <= 0 {
		n = 3
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := *c.baseURL
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.cseID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %s", redact.Secrets(err.Error()))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("search api status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	if len(out.Items) > n {
		out.Items = out.Items[:n]
	}
	return out.Items, nil
}
