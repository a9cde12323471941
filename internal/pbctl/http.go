package pbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/pbspread/internal/domain/catalog"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// Health returns nil when /healthz answers 200.
func (c *HTTPClient) Health(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", "", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	return nil
}

// UploadSheet posts CSV content to /rows and classifies the outcome.
func (c *HTTPClient) UploadSheet(ctx context.Context, raw []byte) (string, AckResponse) {
	var ack AckResponse
	status, body, err := c.do(ctx, http.MethodPost, "/rows", "text/csv", raw)
	if err != nil {
		return outcomeFailed, ack
	}
	switch status {
	case http.StatusAccepted:
		_ = json.Unmarshal(body, &ack)
		return outcomeAccepted, ack
	case http.StatusOK:
		_ = json.Unmarshal(body, &ack)
		return outcomeDuplicate, ack
	case http.StatusTooManyRequests:
		return outcomeRejected, ack
	default:
		return outcomeFailed, ack
	}
}

// Leaderboard fetches the top n entries for an event. ok is false while
// no snapshot has been published.
func (c *HTTPClient) Leaderboard(ctx context.Context, key catalog.EventKey, n int) (lb Leaderboard, ok bool, err error) {
	path := "/leaderboard/" + key.String() + "?limit=" + strconv.Itoa(n)
	status, body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return lb, false, err
	}
	switch status {
	case http.StatusOK:
		if err := json.Unmarshal(body, &lb); err != nil {
			return lb, false, fmt.Errorf("failed to decode leaderboard: %w", err)
		}
		return lb, true, nil
	case http.StatusServiceUnavailable:
		return lb, false, nil
	default:
		return lb, false, fmt.Errorf("leaderboard request failed with status: %d", status)
	}
}
