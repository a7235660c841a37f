package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const previewLen = 120

// RequestHook observes every provider call; used for metrics.
type RequestHook func(op string, ok bool, latency time.Duration)

// HTTPClient posts JSON to the provider with a per-request timeout taken
// from the dispatch snapshot.
type HTTPClient struct {
	httpClient *http.Client
	logger     *zap.Logger
	onRequest  RequestHook
}

// NewHTTPClient builds a client. onRequest is optional (nil = no-op).
func NewHTTPClient(logger *zap.Logger, onRequest RequestHook) *HTTPClient {
	if onRequest == nil {
		onRequest = func(string, bool, time.Duration) {}
	}
	return &HTTPClient{
		httpClient: &http.Client{},
		logger:     logger,
		onRequest:  onRequest,
	}
}

func (c *HTTPClient) Post(ctx context.Context, r Request) (*Response, error) {
	start := time.Now()
	resp, err := c.post(ctx, r)
	c.onRequest(r.Op, err == nil, time.Since(start))
	return resp, err
}

func (c *HTTPClient) post(ctx context.Context, r Request) (*Response, error) {
	var body []byte
	if r.Body == nil {
		body = []byte("[]")
	} else {
		var err error
		if body, err = json.Marshal(r.Body); err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", r.Op, err)
		}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", r.Op, err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("provider request failed",
			zap.String("op", r.Op), zap.String("url", r.URL), zap.Error(err))
		return nil, fmt.Errorf("send %s request: %w", r.Op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", r.Op, err)
	}

	c.logger.Info("provider POST",
		zap.String("op", r.Op),
		zap.String("url", r.URL),
		zap.Int("status", resp.StatusCode),
		zap.String("body_preview", Preview(string(raw), previewLen)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: r.Op, StatusCode: resp.StatusCode, Preview: Preview(string(raw), previewLen)}
	}

	out := &Response{StatusCode: resp.StatusCode, Body: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var decoded any
		if err := dec.Decode(&decoded); err == nil {
			out.JSON = decoded
		}
	}
	return out, nil
}

// compile-time check that HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
