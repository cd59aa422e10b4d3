// Package client talks to authd on behalf of calendar-front.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/urlutil"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	attemptTimeout = 10 * time.Second
	maxRetries     = 2
	errorBodyLimit = 512
)

// SessionResponse is the body returned by POST /session
type SessionResponse struct {
	State   string `json:"state"`
	AuthURL string `json:"auth_url"`
}

// StatusError is returned for non-2xx answers from authd
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// BackendClient calls the authd HTTP API with a small retry budget
type BackendClient struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewBackendClient creates a client for the authd instance at baseURL
func NewBackendClient(baseURL string) *BackendClient {
	c := retryablehttp.NewClient()
	c.RetryMax = maxRetries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = attemptTimeout
	c.Logger = leveledLogger{}
	c.CheckRetry = checkRetry
	// Hand the final response back so its body can be reported
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &BackendClient{baseURL: baseURL, http: c}
}

// CreateSession asks authd for a new state and authorization URL
func (c *BackendClient) CreateSession(ctx context.Context) (*SessionResponse, error) {
	endpoint, err := urlutil.JoinPath(c.baseURL, "session")
	if err != nil {
		return nil, fmt.Errorf("building session URL: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}
	if session.State == "" || session.AuthURL == "" {
		return nil, fmt.Errorf("backend returned an incomplete session")
	}
	return &session, nil
}

// DeleteSession tells authd to forget state
func (c *BackendClient) DeleteSession(ctx context.Context, state string) error {
	endpoint, err := urlutil.JoinPath(c.baseURL, "session", state)
	if err != nil {
		return fmt.Errorf("building session URL: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	return nil
}

// checkRetry only retries POST when no response arrived. A 5xx to POST
// /session may still have stored a pending record.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.Request != nil && resp.Request.Method == http.MethodPost {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// leveledLogger routes retryablehttp logs through the structured logger
type leveledLogger struct{}

func fields(keysAndValues []any) map[string]any {
	out := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}

func (leveledLogger) Error(msg string, keysAndValues ...any) {
	log.LogErrorWithFields("backend_client", msg, fields(keysAndValues))
}

func (leveledLogger) Warn(msg string, keysAndValues ...any) {
	log.LogWarnWithFields("backend_client", msg, fields(keysAndValues))
}

func (leveledLogger) Info(msg string, keysAndValues ...any) {
	log.LogDebugWithFields("backend_client", msg, fields(keysAndValues))
}

func (leveledLogger) Debug(msg string, keysAndValues ...any) {
	log.LogTraceWithFields("backend_client", msg, fields(keysAndValues))
}

// readErrorBody returns the start of an error response for reporting
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return strings.TrimSpace(string(body))
}
