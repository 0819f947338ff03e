package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/mensetsu/internal/batch"
	"github.com/foxseedlab/mensetsu/internal/frame"
	"github.com/foxseedlab/mensetsu/internal/multipart"
)

const (
	maxResponseBytes = 64 << 20
	maxErrorSnippet  = 512
)

type Endpoints struct {
	Multipart string
	Headers   string
	Speech    string
}

type Client struct {
	endpoints Endpoints
	opts      multipart.Options
	client    *http.Client
}

func NewClient(endpoints Endpoints, timeout time.Duration, opts multipart.Options) batch.Client {
	return &Client{
		endpoints: endpoints,
		opts:      opts,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Exchange(ctx context.Context, req frame.TurnRequest) (batch.Result, error) {
	body, err := frame.EncodeTurn(req)
	if err != nil {
		return batch.Result{}, err
	}
	header, data, err := c.post(ctx, c.endpoints.Multipart, body)
	if err != nil {
		return batch.Result{}, err
	}
	result, err := batch.DecodeMultipart(header.Get("Content-Type"), data, c.opts)
	if err != nil {
		return batch.Result{}, fmt.Errorf("decode multipart response: %w", err)
	}
	return result, nil
}

func (c *Client) ExchangeWithHeaders(ctx context.Context, req frame.TurnRequest) (batch.Result, error) {
	body, err := frame.EncodeTurn(req)
	if err != nil {
		return batch.Result{}, err
	}
	header, data, err := c.post(ctx, c.endpoints.Headers, body)
	if err != nil {
		return batch.Result{}, err
	}
	return batch.DecodeHeaders(header, data), nil
}

func (c *Client) Synthesize(ctx context.Context, req frame.SpeechRequest) ([]byte, error) {
	body, err := frame.EncodeSpeech(req)
	if err != nil {
		return nil, err
	}
	_, data, err := c.post(ctx, c.endpoints.Speech, body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return nil, nil, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, snippet(data))
	}
	return resp.Header, data, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}
