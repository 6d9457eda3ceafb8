package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Emperor1p/nclexkeysinternational/pkg/httpclient"
)

// refreshPath is the token refresh endpoint, the only place where token
// rotation happens.
const refreshPath = "/api/auth/refresh"

// skipAuthPaths never carry a bearer token: they establish the session.
var skipAuthPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/refresh",
	"/api/auth/forgot-password",
	"/api/auth/reset-password",
}

// Options configures a single request made through Client.Do.
type Options struct {
	// Method defaults to GET, or POST when Body is set.
	Method string

	// Body is JSON-marshaled into the request body when non-nil.
	Body any

	// Headers are added to the request after the defaults.
	Headers map[string]string

	// SkipAuth leaves the Authorization header off even when a session
	// exists, and disables the 401 refresh-retry.
	SkipAuth bool
}

// Result is a successful API response.
type Result struct {
	Status int
	Data   json.RawMessage
}

// Decode unmarshals the response data into target.
func (r *Result) Decode(target any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, target)
}

// envelope mirrors the API's standard response format.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// Client is the Go SDK for the enrollment API. It attaches the session's
// access token to requests and transparently refreshes it once on 401.
type Client struct {
	baseURL string
	http    *httpclient.Client
	store   SessionStore
	logger  *slog.Logger

	// refreshMu serializes refresh attempts so concurrent 401s rotate the
	// token pair once, not once per request.
	refreshMu sync.Mutex
}

// New creates a client for the API at baseURL using the given session store.
func New(baseURL string, store SessionStore, logger *slog.Logger) *Client {
	return NewWithHTTPConfig(baseURL, store, logger, httpclient.DefaultConfig())
}

// NewWithHTTPConfig is like New but with explicit transport settings.
func NewWithHTTPConfig(baseURL string, store SessionStore, logger *slog.Logger, cfg httpclient.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(cfg),
		store:   store,
		logger:  logger,
	}
}

// Do executes a request against the API. On 401 with an active session it
// refreshes the token pair and retries the request exactly once; if the
// refresh fails the session is cleared and an APIError with RequiresReauth
// set is returned.
func (c *Client) Do(ctx context.Context, path string, opts Options) (*Result, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
		if opts.Body != nil {
			method = http.MethodPost
		}
	}

	var bodyBytes []byte
	if opts.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	authenticated := !opts.SkipAuth && !isSkipAuthPath(path)

	var access string
	if authenticated {
		sess, err := c.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if sess != nil {
			access = sess.Tokens.Access
		}
	}

	resp, err := c.send(ctx, method, path, bodyBytes, opts.Headers, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated && access != "" {
		drainAndClose(resp)

		newAccess, refreshErr := c.refresh(ctx, access)
		if refreshErr != nil {
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.WarnContext(ctx, "failed to clear session after refresh failure",
					slog.String("error", clearErr.Error()),
				)
			}
			return nil, &APIError{
				Status:         http.StatusUnauthorized,
				Code:           "SESSION_EXPIRED",
				Message:        "session expired, please log in again",
				RequiresReauth: true,
			}
		}

		// Exactly one retry with the rotated access token.
		resp, err = c.send(ctx, method, path, bodyBytes, opts.Headers, newAccess)
		if err != nil {
			return nil, err
		}
	}

	return c.parseResponse(resp)
}

// Get is shorthand for Do with the GET method.
func (c *Client) Get(ctx context.Context, path string) (*Result, error) {
	return c.Do(ctx, path, Options{Method: http.MethodGet})
}

// Post is shorthand for Do with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Result, error) {
	return c.Do(ctx, path, Options{Method: http.MethodPost, Body: body})
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, headers map[string]string, access string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.http.Do(ctx, req)
}

// refresh rotates the session's token pair. staleAccess is the access token
// that just failed; if another goroutine already rotated past it, the stored
// pair is reused instead of burning the refresh token again.
func (c *Client) refresh(ctx context.Context, staleAccess string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess == nil || sess.Tokens.Refresh == "" {
		return "", fmt.Errorf("no refresh token available")
	}
	if sess.Tokens.Access != staleAccess {
		return sess.Tokens.Access, nil
	}

	body, err := json.Marshal(map[string]string{"refresh": sess.Tokens.Refresh})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, refreshPath, body, nil, "")
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		return "", fmt.Errorf("decode refresh tokens: %w", err)
	}
	if tokens.Access == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}

	sess.Tokens = tokens
	if err := c.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("save rotated session: %w", err)
	}

	c.logger.DebugContext(ctx, "session tokens rotated")
	return tokens.Access, nil
}

func (c *Client) parseResponse(resp *http.Response) (*Result, error) {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.FieldErrors = env.Error.Fields
		} else {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr.classify()
	}

	return &Result{Status: resp.StatusCode, Data: env.Data}, nil
}

func isSkipAuthPath(path string) bool {
	for _, p := range skipAuthPaths {
		if path == p {
			return true
		}
	}
	return false
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
