package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Umer9538/nfcapp-offline/internal/queue"
)

// Executor replays one queued request against the remote API.
type Executor interface {
	Execute(ctx context.Context, req queue.Request) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req queue.Request) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req queue.Request) error {
	return f(ctx, req)
}

// HTTPExecutor is the default executor: it issues a generic HTTP call
// using the request's method, target, payload, and headers. Any non-2xx
// response is a failure.
type HTTPExecutor struct {
	// BaseURL is prepended to relative targets, e.g.
	// "https://api.nfcapp.example". Absolute targets are used as-is.
	BaseURL string

	// Client overrides the HTTP client (default: http.DefaultClient).
	Client *http.Client
}

// Execute implements Executor.
func (x *HTTPExecutor) Execute(ctx context.Context, req queue.Request) error {
	url := x.resolve(req.Target)

	var body io.Reader
	if len(req.Payload) > 0 {
		body = bytes.NewReader(req.Payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if len(req.Payload) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// resolve joins a relative target onto the base URL.
func (x *HTTPExecutor) resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	base := strings.TrimSuffix(x.BaseURL, "/")
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target
}
