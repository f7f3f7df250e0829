package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lcoppola/dropforward/internal/instrumentation"
	"github.com/lcoppola/dropforward/internal/logging"
)

// Default API hosts. RPC endpoints take JSON bodies; content endpoints move
// file bytes and carry their arguments in the Dropbox-API-Arg header.
const (
	defaultRPCURL     = "https://api.dropboxapi.com/2"
	defaultContentURL = "https://content.dropboxapi.com/2"

	apiArgHeader = "Dropbox-API-Arg"
)

// TokenProvider supplies the current access token and performs an immediate
// refresh when the provider rejects it mid-operation.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshAccessToken(ctx context.Context) (string, error)
}

// Client is a thin contract over the Dropbox HTTP API, parameterized by the
// current token. All calls block with the HTTP client's timeout.
type Client struct {
	rpcURL     string
	contentURL string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURLs overrides the RPC and content hosts. Used by tests.
func WithBaseURLs(rpcURL, contentURL string) ClientOption {
	return func(c *Client) {
		c.rpcURL = rpcURL
		c.contentURL = contentURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithClientMetrics sets the metrics recorder.
func WithClientMetrics(m *instrumentation.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient returns a Client that authenticates every call through tokens.
func NewClient(tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		rpcURL:     defaultRPCURL,
		contentURL: defaultContentURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		tokens:     tokens,
		logger:     slog.Default(),
		metrics:    &instrumentation.Metrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = &instrumentation.Metrics{}
	}
	c.logger = logging.WithComponent(c.logger, "dropbox")
	return c
}

// do sends an authenticated request built by build. When the provider rejects
// the access token the client refreshes once and retries the request; any
// other failure is returned as is.
func (c *Client) do(ctx context.Context, op, path string, build func(token string) (*http.Request, error)) (*http.Response, error) {
	start := time.Now()
	ctx, span := instrumentation.StartRemoteSpan(ctx, op, path)
	defer span.End()

	resp, err := c.execute(ctx, op, path, build)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordRemoteOperation(ctx, op, instrumentation.StatusError, time.Since(start))
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordRemoteOperation(ctx, op, instrumentation.StatusSuccess, time.Since(start))
	return resp, nil
}

func (c *Client) execute(ctx context.Context, op, path string, build func(token string) (*http.Request, error)) (*http.Response, error) {
	accessToken, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("dropbox %s: no usable token: %w", op, err)
	}

	resp, err := c.send(build, accessToken)
	if err != nil {
		return nil, fmt.Errorf("dropbox %s %s: %w", op, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.logger.Warn("access token rejected, refreshing",
			logging.Operation(op), logging.Path(path))

		accessToken, err = c.tokens.RefreshAccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("dropbox %s: refresh after rejection failed: %w", op, err)
		}
		resp, err = c.send(build, accessToken)
		if err != nil {
			return nil, fmt.Errorf("dropbox %s %s: %w", op, path, err)
		}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.apiError(resp, op, path)
	}

	return resp, nil
}

func (c *Client) send(build func(token string) (*http.Request, error), token string) (*http.Response, error) {
	req, err := build(token)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

// rpc performs a JSON-in, JSON-out call against an RPC endpoint, decoding the
// response into out when out is non-nil.
func (c *Client) rpc(ctx context.Context, op, endpoint, path string, args, out any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("dropbox %s: failed to encode arguments: %w", op, err)
	}

	resp, err := c.do(ctx, op, path, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dropbox %s: failed to decode response: %w", op, err)
	}
	return nil
}

// apiError drains the response body into a typed provider error.
func (c *Client) apiError(resp *http.Response, op, path string) error {
	apiErr := &APIError{
		Op:         op,
		Path:       path,
		StatusCode: resp.StatusCode,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var payload struct {
			ErrorSummary string `json:"error_summary"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.ErrorSummary != "" {
			apiErr.Summary = payload.ErrorSummary
		} else {
			apiErr.Summary = string(bytes.TrimSpace(data))
		}
	}
	return apiErr
}
