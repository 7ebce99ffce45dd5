// Package supabase talks to a hosted Supabase project over its REST
// endpoints: PostgREST for rows, Storage for objects and GoTrue for auth.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/logger"
	"github.com/rs/zerolog"
)

const (
	maxResponseBytes = 4 << 20
	defaultTimeout   = 20 * time.Second
)

var (
	ErrNotConfigured     = errors.New("supabase url and anon key are required")
	ErrServiceKeyMissing = errors.New("supabase service role key is required")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the project coordinates.
type Config struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	Timeout        time.Duration
}

// Client is a thin REST client shared by Table, Storage, Auth and Provisioner.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	jwtSecret  string
	http       httpDoer
	log        zerolog.Logger
}

// New validates cfg and builds a client with a bounded http.Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	anon := strings.TrimSpace(cfg.AnonKey)
	if base == "" || anon == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    base,
		anonKey:    anon,
		serviceKey: strings.TrimSpace(cfg.ServiceRoleKey),
		jwtSecret:  strings.TrimSpace(cfg.JWTSecret),
		http:       &http.Client{Timeout: timeout},
		log:        logger.Component("supabase"),
	}, nil
}

// SetHTTPClient swaps the transport, mainly for tests.
func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
		return
	}
	c.http = client
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithAccessToken attaches a signed-in user's token so requests made with ctx
// are evaluated by row-level security as that user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return auth.WithAccessToken(ctx, token)
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) string {
	return auth.AccessToken(ctx)
}

// APIError is a non-2xx response. Message is the server's human-readable text.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("supabase: status %d", e.Status)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// UserMessage is the text worth showing in a toast.
func (e *APIError) UserMessage() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type request struct {
	method  string
	path    string
	query   url.Values
	json    any
	body    io.Reader
	size    int64
	ctype   string
	headers map[string]string
	// service sends the service-role key as both apikey and bearer.
	service bool
	// bearer overrides the token taken from the context.
	bearer string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	body := r.body
	contentType := r.ctype
	if r.json != nil {
		payload, err := json.Marshal(r.json)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if r.size > 0 {
		req.ContentLength = r.size
	}

	apiKey := c.anonKey
	bearer := r.bearer
	if r.service {
		if c.serviceKey == "" {
			return ErrServiceKeyMissing
		}
		apiKey = c.serviceKey
		bearer = c.serviceKey
	}
	if bearer == "" {
		bearer = AccessToken(ctx)
	}
	if bearer == "" {
		bearer = c.anonKey
	}

	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.log.Warn().
			Str("method", r.method).
			Str("path", r.path).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("supabase request failed")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if len(apiErr.Message) > 200 {
			apiErr.Message = apiErr.Message[:200]
		}
		return apiErr
	}

	errText, _ := payload.Error.(string)
	for _, candidate := range []string{payload.Message, payload.Msg, payload.ErrorDescription, errText} {
		if strings.TrimSpace(candidate) != "" {
			apiErr.Message = strings.TrimSpace(candidate)
			break
		}
	}

	switch {
	case payload.ErrorCode != "":
		apiErr.Code = payload.ErrorCode
	case payload.Code != nil:
		apiErr.Code = strings.TrimSpace(fmt.Sprint(payload.Code))
	}
	return apiErr
}
