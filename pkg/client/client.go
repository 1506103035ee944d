// Package client is the Go client for the submission portal API.
//
// It wraps an HTTP client that attaches the current access token to every
// request and, on an authorization failure, coordinates a single token
// refresh shared by all concurrent callers before replaying each failed
// request exactly once. Session tracks the signed-in user on top of it, and
// Guard gates route entry on the session's flags.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 30 * time.Second

// Config holds the settings for a portal client.
type Config struct {
	// BaseURL is the portal root, e.g. "https://portal.example.org".
	BaseURL string

	// Tokens is the credential store shared with the Session. A fresh
	// in-memory store is created when nil.
	Tokens *TokenStore

	// HTTPClient overrides the transport. When nil a client with a fixed
	// request timeout is used.
	HTTPClient *http.Client

	UserAgent string
}

// Client talks to the portal API.
type Client struct {
	baseURL   string
	http      *http.Client
	store     *TokenStore
	userAgent string

	refreshes singleflight.Group
}

// New creates a Client for the portal at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base URL is required")
	}

	store := cfg.Tokens
	if store == nil {
		store = NewTokenStore()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		store:     store,
		userAgent: cfg.UserAgent,
	}, nil
}

// Tokens returns the credential store backing this client.
func (c *Client) Tokens() *TokenStore {
	return c.store
}

// do sends an authenticated JSON request. When the response is a 401 it
// refreshes the access token (sharing one refresh across concurrent callers)
// and replays the request once with the new token. A second 401 after the
// replay is terminal.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := marshalBody(in)
	if err != nil {
		return err
	}

	access := c.store.Tokens().Access
	resp, err := c.attempt(ctx, method, path, body, access)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		refreshed, err := c.refreshAccess(ctx, access)
		if err != nil {
			return err
		}
		resp, err = c.attempt(ctx, method, path, body, refreshed)
		if err != nil {
			return err
		}
	}

	return decodeResponse(resp, out)
}

// doPublic sends an unauthenticated JSON request. Auth endpoints use it so
// that a 401 from, say, a bad login never triggers the refresh flow.
func (c *Client) doPublic(ctx context.Context, method, path string, in, out any) error {
	body, err := marshalBody(in)
	if err != nil {
		return err
	}
	resp, err := c.attempt(ctx, method, path, body, "")
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// stream sends an authenticated request and hands back the raw response
// body, refreshing and replaying once on a 401 like do.
func (c *Client) stream(ctx context.Context, method, path string) (*http.Response, error) {
	access := c.store.Tokens().Access
	resp, err := c.attempt(ctx, method, path, nil, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		refreshed, err := c.refreshAccess(ctx, access)
		if err != nil {
			return nil, err
		}
		resp, err = c.attempt(ctx, method, path, nil, refreshed)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, access string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

// refreshAccess exchanges the refresh token for a new access token. All
// concurrent callers share one refresh call and observe the same outcome:
// either everyone gets the new access token, or everyone gets the same
// error with the stored credentials cleared.
//
// stale is the access token the caller just saw rejected. When the stored
// token already differs, another caller finished a refresh while this one
// was joining and the fresh token is returned without a network call.
func (c *Client) refreshAccess(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		current, gen := c.store.snapshot()
		if current.Access != "" && current.Access != stale {
			return current.Access, nil
		}
		if current.Refresh == "" {
			c.store.clearIf(gen)
			return nil, ErrSessionExpired
		}

		// The refresh call is shared by every waiter, so it must not die
		// with the first caller's context.
		var pair Tokens
		err := c.doPublic(context.WithoutCancel(ctx), http.MethodPost, "/v1/auth/refresh",
			map[string]string{"refresh": current.Refresh}, &pair)
		if err != nil {
			c.store.clearIf(gen)
			if errors.Is(err, ErrUnauthorized) {
				return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
			}
			return nil, err
		}

		if !c.store.setIf(gen, pair) {
			// The session ended or was replaced while the refresh was in
			// flight; the result belongs to nobody.
			return nil, ErrSessionExpired
		}
		return pair.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func marshalBody(in any) ([]byte, error) {
	if in == nil {
		return nil, nil
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return body, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorBody(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	defer resp.Body.Close()
	return decodeErrorBody(resp)
}

func decodeErrorBody(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	var envelope struct {
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
		apiErr.Details = envelope.Details
	}

	// Server faults surface generically rather than leaking internals.
	if resp.StatusCode >= http.StatusInternalServerError {
		apiErr.Message = "the server could not process the request"
		apiErr.Details = nil
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
