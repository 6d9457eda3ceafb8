package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// LoginRequest carries login credentials. TwoFactorToken is only needed when
// a previous attempt returned Requires2FA.
type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	TwoFactorToken string `json:"two_factor_token,omitempty"`
}

type loginResponse struct {
	User   Identity `json:"user"`
	Tokens Tokens   `json:"tokens"`
}

// Login authenticates and stores the resulting session. The returned session
// is a copy; the store holds the authoritative one.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	res, err := c.Do(ctx, "/api/auth/login", Options{
		Method:   http.MethodPost,
		Body:     req,
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}

	var lr loginResponse
	if err := res.Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if lr.Tokens.Access == "" {
		return nil, fmt.Errorf("login response missing tokens")
	}

	sess := &Session{Identity: lr.User, Tokens: lr.Tokens}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Logout revokes the session server-side and clears the local store. The
// store is cleared even when the revocation call fails.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil
	}

	_, doErr := c.Do(ctx, "/api/auth/logout", Options{
		Method: http.MethodPost,
		Body:   map[string]string{"refresh": sess.Tokens.Refresh},
	})

	if clearErr := c.store.Clear(ctx); clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	return doErr
}
