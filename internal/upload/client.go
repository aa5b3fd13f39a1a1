package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/ingest/alpha"
)

// Client sends export files to the LiftLog server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the LiftLog server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// statusError is a non-200 response from the server.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("import failed (status %d): %s", e.status, e.body)
}

// retryable reports whether another attempt could succeed.
func (e *statusError) retryable() bool {
	return e.status >= http.StatusInternalServerError || e.status == http.StatusTooManyRequests
}

// SendExport POSTs one Alpha Progression CSV export to the import endpoint.
// Network errors, 429 and 5xx responses are retried up to 3 times with
// exponential backoff; other failures return immediately.
func (c *Client) SendExport(ctx context.Context, data []byte, dryRun bool) (*alpha.Result, error) {
	u := c.serverURL + "/api/v1/import/alpha?" + url.Values{"dry_run": {strconv.FormatBool(dryRun)}}.Encode()

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		res, err := c.post(ctx, u, data)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if se, ok := err.(*statusError); ok && !se.retryable() {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) post(ctx context.Context, u string, data []byte) (*alpha.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}

	var res alpha.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding import result: %w", err)
	}
	return &res, nil
}
