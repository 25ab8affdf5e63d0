// Package vnda is the adapter for the VNDA storefront: a bearer-token REST
// client for bulk syncs and a decoder for inbound webhook deliveries.
package vnda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	perPage          = 50
	paginationHeader = "X-Pagination"
	shopHostHeader   = "X-Shop-Host"
)

// Page is one page of a listing
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
}

// Client calls the VNDA REST API
type Client struct {
	cfg        config.VndaConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a VNDA client. A missing token fails each call with a
// configuration error.
func NewClient(cfg config.VndaConfig, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 16
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("vnda")
	return c
}

// Name identifies the source
func (c *Client) Name() integration.Source {
	return integration.SourceVnda
}

// CheckCredentials validates the token without any network I/O
func (c *Client) CheckCredentials() error {
	return ecommerce.CheckToken(integration.SourceVnda, "vnda token", c.cfg.Token, c.cfg.MinTokenLength)
}

// Ping lists a single order with the diagnostics timeout
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "orders", url.Values{"page": {"1"}, "per_page": {"1"}}, nil, c.cfg.PingTimeout)
	return err
}

// ListOrders returns one page of orders
func (c *Client) ListOrders(ctx context.Context, page int) (Page[Order], error) {
	return list[Order](ctx, c, "orders", page)
}

// ListProducts returns one page of products with their variants
func (c *Client) ListProducts(ctx context.Context, page int) (Page[Product], error) {
	return list[Product](ctx, c, "products", page)
}

// ListCustomers returns one page of client records
func (c *Client) ListCustomers(ctx context.Context, page int) (Page[Customer], error) {
	return list[Customer](ctx, c, "clients", page)
}

func list[T any](ctx context.Context, c *Client, resource string, page int) (Page[T], error) {
	query := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}
	items := make([]T, 0)
	resp, err := c.get(ctx, resource, query, &items, c.cfg.Timeout)
	if err != nil {
		return Page[T]{}, err
	}

	total := 0
	if raw := resp.Header.Get(paginationHeader); raw != "" {
		var p pagination
		if json.Unmarshal([]byte(raw), &p) == nil {
			total = p.TotalPages
		}
	}
	return Page[T]{Items: items, Page: page, TotalPages: total}, nil
}

// get performs one GET and decodes the JSON body into v when v is non-nil
func (c *Client) get(ctx context.Context, resource string, query url.Values, v any, timeout time.Duration) (*http.Response, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + resource
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, integration.NewUpstreamError(integration.SourceVnda, integration.KindConfiguration, "invalid base url", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if c.cfg.StoreHost != "" {
		req.Header.Set(shopHostHeader, c.cfg.StoreHost)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("vnda call failed",
			zap.String("resource", resource),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, ecommerce.TransportError(integration.SourceVnda, err)
	}
	defer resp.Body.Close()

	body, err := ecommerce.ReadBody(integration.SourceVnda, resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("vnda call",
		zap.String("resource", resource),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if statusErr := ecommerce.StatusError(integration.SourceVnda, resp); statusErr != nil {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			statusErr.Message += ": " + apiErr.Error
		}
		return nil, statusErr
	}
	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			return nil, ecommerce.InvalidResponse(integration.SourceVnda, err)
		}
	}
	return resp, nil
}

// fetchAll walks pages until the reported total, an empty page or the cap
func fetchAll[T any](ctx context.Context, c *Client, resource string, listPage func(context.Context, int) (Page[T], error)) ([]T, error) {
	all := make([]T, 0)
	for page := 1; ; page++ {
		p, err := listPage(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		if len(p.Items) == 0 || (p.TotalPages > 0 && page >= p.TotalPages) || len(p.Items) < perPage {
			return all, nil
		}
		if page >= c.cfg.MaxPages {
			c.logger.Warn("page cap reached, remaining pages skipped",
				zap.String("resource", resource),
				zap.Int("max_pages", c.cfg.MaxPages),
			)
			return all, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Source ports
// ---------------------------------------------------------------------------

// FetchOrders returns storefront orders mapped to the canonical shape
func (c *Client) FetchOrders(ctx context.Context) ([]integration.Order, error) {
	raw, err := fetchAll(ctx, c, "orders", c.ListOrders)
	if err != nil {
		return nil, err
	}
	orders := make([]integration.Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, MapOrder(o))
	}
	return orders, nil
}

// FetchProducts returns one canonical row per variant SKU
func (c *Client) FetchProducts(ctx context.Context) ([]integration.Product, error) {
	raw, err := fetchAll(ctx, c, "products", c.ListProducts)
	if err != nil {
		return nil, err
	}
	products := make([]integration.Product, 0, len(raw))
	for _, p := range raw {
		products = append(products, MapProduct(p)...)
	}
	return products, nil
}

// FetchPrices returns the storefront price of every variant SKU
func (c *Client) FetchPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	products, err := c.FetchProducts(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		if p.SKU != "" && p.PriceKnown() {
			prices[p.SKU] = p.BasePrice
		}
	}
	return prices, nil
}

// FetchCustomers returns storefront client records
func (c *Client) FetchCustomers(ctx context.Context) ([]integration.Customer, error) {
	raw, err := fetchAll(ctx, c, "clients", c.ListCustomers)
	if err != nil {
		return nil, err
	}
	customers := make([]integration.Customer, 0, len(raw))
	for _, cu := range raw {
		customers = append(customers, MapCustomer(cu))
	}
	return customers, nil
}

var (
	_ integration.OrderSource    = (*Client)(nil)
	_ integration.ProductSource  = (*Client)(nil)
	_ integration.CustomerSource = (*Client)(nil)
	_ integration.PriceSource    = (*Client)(nil)
	_ integration.HealthChecker  = (*Client)(nil)
)
