// Package api implements the envelope-aware HTTP client for the NichePulse
// remote service.
//
// Every remote response is expected to use the uniform
// {code, message, data, success} wrapper. The client attaches the current
// bearer token, enforces the envelope contract, raises typed errors from
// internal/errors on any disagreement, and feeds every completed response
// through the response interceptor so identity stays fresh without per-call
// wiring.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/nichepulse/nichepulse-go/internal/errors"
	"github.com/nichepulse/nichepulse-go/internal/logging"
	"github.com/nichepulse/nichepulse-go/internal/metrics"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 8 << 20 // 8 MiB
)

// TokenSource supplies the current bearer token, or "" when anonymous.
type TokenSource func() string

// Config configures the API client.
type Config struct {
	// BaseURL is the remote service root (e.g. https://api.nichepulse.io/v1).
	BaseURL string
	// HTTPClient executes requests. When nil, a default client with a
	// conservative timeout is used.
	HTTPClient *http.Client
	// TokenSource supplies the bearer token attached to each request.
	// Optional; anonymous calls go out without an Authorization header.
	TokenSource TokenSource
	// Interceptor processes every completed response. Optional.
	Interceptor *Interceptor
	Logger      *logging.Logger
}

// Client is the envelope-aware HTTP client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	interceptor *Interceptor
	logger      *logging.Logger
}

// New creates an API client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: BaseURL must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: BaseURL scheme must be http or https")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		tokenSource: cfg.TokenSource,
		interceptor: cfg.Interceptor,
		logger:      logger,
	}, nil
}

// Result is a completed, envelope-checked response.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Envelope   Envelope
}

// Payload returns the unwrapped data field, or the raw body when the
// response carries no data field.
func (r *Result) Payload() []byte {
	return r.Envelope.payload(r.Body)
}

// Do executes a request against path (joined to the base URL) and returns
// the parsed result. body, when non-nil, is JSON-encoded.
//
// A cancelled call returns the context error without touching the
// interceptor, so an abort is distinguishable from a ServiceError. All other
// completed calls — including rejections — are fed to the interceptor before
// the error taxonomy is applied.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Result, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("api: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokenSource != nil {
		if token := c.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if ctxErr == context.DeadlineExceeded {
				return nil, apperrors.Timeout(ctxErr)
			}
			return nil, ctxErr
		}
		return nil, apperrors.Transport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if ctxErr == context.DeadlineExceeded {
				return nil, apperrors.Timeout(ctxErr)
			}
			return nil, ctxErr
		}
		return nil, apperrors.Transport(fmt.Errorf("read response: %w", err))
	}

	// A cancellation racing the response still counts as an abort: the
	// interceptor must not observe it.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return nil, apperrors.Timeout(ctxErr)
		}
		return nil, ctxErr
	}

	metrics.ObserveAPIRequest(method, metricPath(path), resp.StatusCode, time.Since(start))
	if c.interceptor != nil {
		c.interceptor.Process(resp.StatusCode, resp.Header, respBody)
	}

	env := parseEnvelope(respBody)
	result := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		Envelope:   env,
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperrors.Unauthorized(errorMessage(respBody)).
			WithDetails("payload", string(respBody))
	}

	transportOK := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !transportOK || !env.ok() {
		se := apperrors.Remote(errorMessage(respBody), errorCode(env, resp.StatusCode)).
			WithDetails("payload", string(respBody))
		c.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"code":   se.Status,
		}).Debug("API call rejected")
		return nil, se
	}

	return result, nil
}

// Do executes a request through c and decodes the unwrapped data payload
// into T. When the response has no data field, the raw envelope is decoded
// into T instead.
func Do[T any](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	var out T
	result, err := c.Do(ctx, method, path, body)
	if err != nil {
		return out, err
	}
	payload := result.Payload()
	if len(payload) == 0 || string(payload) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("api: decode response payload: %w", err)
	}
	return out, nil
}

// metricPath strips the query string so metric labels stay low-cardinality.
func metricPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
