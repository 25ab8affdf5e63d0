// Package tiny is the adapter for the Tiny ERP API (v2). It speaks the
// ERP's form-encoded request format and its retorno envelope, and maps
// raw pedido, produto and contato payloads into canonical records.
package tiny

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Result statuses
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
)

// codeNoRecords is the ERP error code for "no records found"
const codeNoRecords = "20"

// Result is a decoded retorno envelope. Data holds the raw retorno object
// and is nil when the ERP reported no records.
type Result struct {
	Status   string
	Data     json.RawMessage
	Page     int
	NumPages int
}

// IsEmpty reports whether the ERP answered "no records"
func (r *Result) IsEmpty() bool {
	return r.Status == StatusEmpty
}

// Decode unmarshals the retorno object into v. Empty results leave v untouched.
func (r *Result) Decode(v any) error {
	if r.IsEmpty() || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return ecommerce.InvalidResponse(integration.SourceTiny, err)
	}
	return nil
}

// Client calls the Tiny API. Calls are rate limited client side and each
// call gets its own deadline.
type Client struct {
	cfg        config.TinyConfig
	httpClient *http.Client
	limiter    *rate.Limiter
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

// NewClient creates a Tiny client. A missing token is not an error here;
// every call fails with a configuration error instead.
func NewClient(cfg config.TinyConfig, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 32
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("tiny")
	return c
}

// Name identifies the source
func (c *Client) Name() integration.Source {
	return integration.SourceTiny
}

// CheckCredentials validates the token without any network I/O
func (c *Client) CheckCredentials() error {
	return ecommerce.CheckToken(integration.SourceTiny, "tiny token", c.cfg.Token, c.cfg.MinTokenLength)
}

// Call posts params to <base_url>/<endpoint>.php with the bulk timeout
func (c *Client) Call(ctx context.Context, endpoint string, params url.Values) (*Result, error) {
	return c.call(ctx, endpoint, params, c.cfg.Timeout)
}

// Ping checks that the ERP answers and accepts the token, using the
// short diagnostics timeout
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "info", nil, c.cfg.PingTimeout)
	return err
}

func (c *Client) call(ctx context.Context, endpoint string, params url.Values, timeout time.Duration) (*Result, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ecommerce.TransportError(integration.SourceTiny, ctx.Err())
		}
		// the limiter refuses to wait past the deadline
		return nil, ecommerce.TransportError(integration.SourceTiny, context.DeadlineExceeded)
	}

	form := url.Values{}
	for k, vs := range params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("token", c.cfg.Token)
	form.Set("formato", "JSON")
	if c.cfg.PartnerID != "" {
		form.Set("integrador", c.cfg.PartnerID)
	}

	endpointURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + endpoint + ".php"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, integration.NewUpstreamError(integration.SourceTiny, integration.KindConfiguration, "invalid base url", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("tiny call failed",
			zap.String("endpoint", endpoint),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, ecommerce.TransportError(integration.SourceTiny, err)
	}
	defer resp.Body.Close()

	body, err := ecommerce.ReadBody(integration.SourceTiny, resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("tiny call",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if statusErr := ecommerce.StatusError(integration.SourceTiny, resp); statusErr != nil {
		return nil, statusErr
	}
	return parseEnvelope(body)
}

// parseEnvelope interprets the retorno header. Error code 20 is the ERP's
// way of saying "no records" and is not a failure.
func parseEnvelope(body []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ecommerce.InvalidResponse(integration.SourceTiny, err)
	}
	if len(env.Retorno) == 0 {
		return nil, ecommerce.InvalidResponse(integration.SourceTiny, errMissingRetorno)
	}

	var header retornoHeader
	if err := json.Unmarshal(env.Retorno, &header); err != nil {
		return nil, ecommerce.InvalidResponse(integration.SourceTiny, err)
	}

	if strings.EqualFold(header.Status, "Erro") {
		if header.noRecords() {
			return &Result{Status: StatusEmpty}, nil
		}
		e := integration.NewUpstreamError(integration.SourceTiny, integration.KindRejected, header.messages(), nil)
		e.Code = header.code()
		return nil, e
	}

	return &Result{
		Status:   StatusOK,
		Data:     env.Retorno,
		Page:     header.Pagina.Int(),
		NumPages: header.NumeroPaginas.Int(),
	}, nil
}
