package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kindfund/kindfund/internal/model"
)

var (
	// ErrUnauthorized is returned when the server answers 401. The held
	// token has already been cleared.
	ErrUnauthorized = errors.New("unauthorized: session missing or expired, log in again")

	// ErrInvalidCredentials is returned by Login when the server rejects the
	// email and password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotLoggedIn is returned by Logout when no token is held.
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError is a non-2xx response other than 401.
type APIError struct {
	Status  int
	Message string
	Context map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kindfund api: %d %s", e.Status, e.Message)
}

// LoginResult is the decoded login response.
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
}

// Client talks to a kindfund server. Every request goes through Do, which
// attaches the held token and drops it on 401.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL using tokens for the
// session.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.call(ctx, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if errors.Is(err, ErrUnauthorized) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := c.tokens.Store(res.Token); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout tells the server and discards the held token. The token is
// discarded even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	token, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNotLoggedIn
	}
	callErr := c.call(ctx, http.MethodPost, "/api/v1/admin/logout", nil, nil)
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	if errors.Is(callErr, ErrUnauthorized) {
		return nil
	}
	return callErr
}

// Do sends req with the held token attached. A 401 response clears the
// token and returns ErrUnauthorized with the response body closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	token, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.tokens.Clear(); err != nil {
			return nil, err
		}
		return nil, ErrUnauthorized
	}
	return resp, nil
}

// call sends a JSON request through Do and decodes a JSON response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var env model.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		apiErr.Context = env.Error.Context
	}
	return apiErr
}

// List returns one page of a collection.
func (c *Client) List(ctx context.Context, collection string, limit, offset int) (*model.ListResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/" + url.PathEscape(collection)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res model.ListResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Get returns one document as raw JSON.
func (c *Client) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := c.call(ctx, http.MethodGet, "/api/v1/"+url.PathEscape(collection)+"/"+url.PathEscape(id), nil, &doc)
	return doc, err
}

// Create stores doc and returns the created document.
func (c *Client) Create(ctx context.Context, collection string, doc json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.call(ctx, http.MethodPost, "/api/v1/"+url.PathEscape(collection), doc, &out)
	return out, err
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/"+url.PathEscape(collection)+"/"+url.PathEscape(id), nil, nil)
}
