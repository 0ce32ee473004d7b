package catalog

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
)

// DefaultBaseURL is the Ecwid REST API root.
const DefaultBaseURL = "https://app.ecwid.com/api/v3"

// EcwidConfig holds Ecwid client configuration.
type EcwidConfig struct {
	StoreID string
	Token   string
	BaseURL string // Default: https://app.ecwid.com/api/v3
	Timeout time.Duration
	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// EcwidClient implements Provider against the Ecwid REST API.
type EcwidClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// NewEcwidClient creates a client. It returns ErrNotConfigured without store id and token.
func NewEcwidClient(cfg EcwidConfig) (*EcwidClient, error) {
	if cfg.StoreID == "" || cfg.Token == "" {
		return nil, ErrNotConfigured
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &EcwidClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base, "/") + "/" + url.PathEscape(cfg.StoreID),
		token:      cfg.Token,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

type listResponse[T any] struct {
	Total int `json:"total"`
	Count int `json:"count"`
	Items []T `json:"items"`
}

// APIError is a non-2xx response from the store API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ecwid API error: status %d, body: %s", e.Status, e.Body)
}

// Products lists products, optionally restricted to one category.
func (c *EcwidClient) Products(ctx context.Context, limit int, category *int64) ([]Product, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if category != nil {
		params.Set("category", strconv.FormatInt(*category, 10))
	}
	var resp listResponse[Product]
	if err := c.get(ctx, "/products", params, &resp); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return resp.Items, nil
}

// Categories lists categories.
func (c *EcwidClient) Categories(ctx context.Context, limit int) ([]Category, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	var resp listResponse[Category]
	if err := c.get(ctx, "/categories", params, &resp); err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	return resp.Items, nil
}

// ShippingOptions lists the store's fulfilment options. The endpoint answers either with
// a bare list or with an {"items": [...]} envelope.
func (c *EcwidClient) ShippingOptions(ctx context.Context) ([]ShippingOption, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/profile/shippingOptions", nil, &raw); err != nil {
		return nil, fmt.Errorf("get shipping options: %w", err)
	}
	var list []ShippingOption
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var resp listResponse[ShippingOption]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal shipping options: %w", err)
	}
	return resp.Items, nil
}

func (c *EcwidClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &APIError{Status: resp.StatusCode, Body: snippet}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
