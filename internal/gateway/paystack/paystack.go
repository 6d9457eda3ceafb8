package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httpclient"
)

const defaultBaseURL = "https://api.paystack.co"

// Config holds the Paystack credentials and endpoints.
type Config struct {
	SecretKey   string
	PublicKey   string
	BaseURL     string
	CallbackURL string
}

// PublicConfig is the client-visible part of the gateway configuration,
// needed to render the hosted checkout widget.
type PublicConfig struct {
	PublicKey string `json:"public_key"`
}

// ConfigLoader supplies the public configuration. The default loader reads
// it from static Config; deployments that rotate keys can load remotely.
type ConfigLoader func(ctx context.Context) (PublicConfig, error)

type configLoad struct {
	done chan struct{}
	cfg  PublicConfig
	err  error
}

// Client is the Paystack gateway adapter. All outbound calls go through the
// shared retrying HTTP client behind a circuit breaker.
type Client struct {
	cfg        Config
	http       *httpclient.CircuitBreakerClient
	logger     *slog.Logger
	loadConfig ConfigLoader

	// Public config is loaded at most once; concurrent callers share the
	// in-flight load and a failed load leaves the next call free to retry.
	cfgMu     sync.Mutex
	cfgLoaded bool
	publicCfg PublicConfig
	inflight  *configLoad
}

// Option customizes the adapter.
type Option func(*Client)

// WithConfigLoader replaces the static public-config loader.
func WithConfigLoader(loader ConfigLoader) Option {
	return func(c *Client) { c.loadConfig = loader }
}

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(client *httpclient.CircuitBreakerClient) Option {
	return func(c *Client) { c.http = client }
}

// New creates a Paystack adapter.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
	}
	c.loadConfig = func(context.Context) (PublicConfig, error) {
		if cfg.PublicKey == "" {
			return PublicConfig{}, fmt.Errorf("paystack public key not configured")
		}
		return PublicConfig{PublicKey: cfg.PublicKey}, nil
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = 30 * time.Second
		c.http = httpclient.NewCircuitBreakerClient(
			httpclient.New(httpCfg),
			httpclient.DefaultCircuitBreakerConfig("paystack"),
			logger,
		)
	}

	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "paystack"
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status   string     `json:"status"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	PaidAt   *time.Time `json:"paid_at"`
	Channel  string     `json:"channel"`
}

// Initialize registers a pending charge with Paystack. Paystack takes the
// amount in minor units for every currency, so the major-unit amount is
// multiplied by 100 here and nowhere else.
func (c *Client) Initialize(ctx context.Context, req *gateway.IntentRequest) (*gateway.InitResult, error) {
	body := initializeRequest{
		Email:       req.Email,
		Amount:      req.Amount * 100,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: c.cfg.CallbackURL,
		Metadata: map[string]string{
			"full_name": req.FullName,
			"phone":     req.Phone,
			"plan_id":   req.PlanID,
		},
	}

	var data initializeData
	if err := c.post(ctx, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}

	return &gateway.InitResult{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

// Verify fetches the charge status from Paystack. Only the exact gateway
// status "success" maps to completed; "failed" maps to failed; anything
// else, including "pending" and "abandoned", is reported as pending so the
// caller can try again.
func (c *Client) Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error) {
	var data verifyData
	if err := c.get(ctx, "/transaction/verify/"+reference, &data); err != nil {
		return nil, err
	}

	result := &gateway.VerifyResult{
		Amount:   data.Amount,
		Currency: data.Currency,
		PaidAt:   data.PaidAt,
		Channel:  data.Channel,
	}
	switch data.Status {
	case "success":
		result.Status = gateway.StatusCompleted
	case "failed":
		result.Status = gateway.StatusFailed
	default:
		result.Status = gateway.StatusPending
	}
	return result, nil
}

// CheckoutParams builds the hosted-widget configuration for an intent.
func (c *Client) CheckoutParams(ctx context.Context, intent *domain.PaymentIntent) (*gateway.Params, error) {
	cfg, err := c.publicConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load paystack public config: %w", err)
	}

	return &gateway.Params{
		PublicKey: cfg.PublicKey,
		Email:     intent.Email,
		Amount:    intent.Amount * 100,
		Currency:  intent.Currency,
		Reference: intent.Reference,
		Metadata: map[string]string{
			"full_name": intent.FullName,
			"phone":     intent.Phone,
		},
	}, nil
}

// publicConfig returns the cached public configuration, loading it on first
// use. Concurrent callers share one in-flight load; a failed load is not
// cached, so the next caller starts a fresh one.
func (c *Client) publicConfig(ctx context.Context) (PublicConfig, error) {
	c.cfgMu.Lock()
	if c.cfgLoaded {
		cfg := c.publicCfg
		c.cfgMu.Unlock()
		return cfg, nil
	}

	if load := c.inflight; load != nil {
		c.cfgMu.Unlock()
		select {
		case <-load.done:
			return load.cfg, load.err
		case <-ctx.Done():
			return PublicConfig{}, ctx.Err()
		}
	}

	load := &configLoad{done: make(chan struct{})}
	c.inflight = load
	c.cfgMu.Unlock()

	load.cfg, load.err = c.loadConfig(ctx)

	c.cfgMu.Lock()
	c.inflight = nil
	if load.err == nil {
		c.publicCfg = load.cfg
		c.cfgLoaded = true
	}
	c.cfgMu.Unlock()
	close(load.done)

	return load.cfg, load.err
}

// VerifyWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 of the raw body keyed by the secret, hex encoded, compared in
// constant time.
func (c *Client) VerifyWebhookSignature(signature string, body []byte) bool {
	mac := hmac.New(sha512.New, []byte(c.cfg.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent is a parsed Paystack webhook payload.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string     `json:"reference"`
		Status    string     `json:"status"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		PaidAt    *time.Time `json:"paid_at"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &evt, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal paystack request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build paystack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build paystack request: %w", err)
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req.Context(), req)
	if err != nil {
		return apperrors.ServiceUnavailable(fmt.Sprintf("paystack unreachable: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read paystack response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode paystack response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		c.logger.Warn("paystack call rejected",
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", envelope.Message))
		return apperrors.PaymentFailed(envelope.Message)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode paystack data: %w", err)
		}
	}
	return nil
}
