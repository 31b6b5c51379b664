// Package upstream implements the HTTP client that forwards pipeline
// requests to their upstream API and returns the upstream response verbatim.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goldengate/goldengate/internal/domain/gate"
	"github.com/goldengate/goldengate/internal/domain/proxy"
)

// DefaultTimeout bounds one upstream round trip, headers through body.
const DefaultTimeout = 30 * time.Second

// Client is a proxy.UpstreamClient over net/http. One connection per
// request: upstreams see Connection: close and the transport never pools.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

var _ proxy.UpstreamClient = (*Client)(nil)

// NewClient builds an upstream client. timeout <= 0 selects DefaultTimeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
			// Redirects propagate to the client verbatim.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Do forwards the request. The override slots win over the request's own
// URL and method when set.
func (c *Client) Do(ctx context.Context, req *gate.Request) (*gate.Response, error) {
	target := req.OverrideURL
	if target == "" {
		target = req.URL()
	}
	method := req.OverrideMethod
	if method == "" {
		method = req.Method
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	for name, values := range req.Header {
		httpReq.Header[name] = append([]string(nil), values...)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Del("Content-Type")
	}
	httpReq.ContentLength = int64(len(req.Body))
	httpReq.Header.Set("Connection", "close")
	httpReq.Close = true

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, target, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	c.logger.Debug("upstream round trip",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", httpResp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	return &gate.Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header.Clone(),
		Body:   body,
	}, nil
}
