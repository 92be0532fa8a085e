package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

const (
	defaultRequestTimeout      = 5 * time.Second
	defaultMaxIdleConns        = 32
	defaultMaxIdleConnsPerHost = 16
	defaultMaxConnsPerHost     = 16
	defaultIdleConnTimeout     = 60 * time.Second
)

// ErrNotFound is returned when the robot reports an unknown sensor.
var ErrNotFound = errors.New("not found")

// Fetcher is the telemetry surface the console polls.
type Fetcher interface {
	GetSensor(ctx context.Context, id string) (Reading, error)
	Ping(ctx context.Context) error
	ListCameras(ctx context.Context) ([]string, error)
	Logs(ctx context.Context) (string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.StatusCode)
}

// Client fetches telemetry from the robot's HTTP API.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Response bodies are limited to 1MB.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a [Client] for the robot API rooted at baseURL
// (for example "http://sights.local:8000"). A zero timeout uses 5s.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid robot url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("robot url scheme must be http or https, got %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}, nil
}

// BaseURL returns the robot API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// GetSensor reads one sensor. Unknown sensors yield [ErrNotFound].
func (c *Client) GetSensor(ctx context.Context, id string) (Reading, error) {
	body, err := c.get(ctx, "/api/sensor/"+url.PathEscape(id))
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("sensor %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return DecodeReading(body)
}

// ListSensors returns the configured sensor IDs, sorted.
func (c *Client) ListSensors(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/sensor/list/")
	if err != nil {
		return nil, err
	}
	var configs map[string]json.RawMessage
	if err := json.Unmarshal(body, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode sensor list: %w", err)
	}
	ids := make([]string, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping sends the lightweight probe. Callers time it themselves.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/api/ping")
	return err
}

// ListCameras returns the names of the robot's cameras.
func (c *Client) ListCameras(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/camera/")
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("failed to decode camera list: %w", err)
	}
	return names, nil
}

// CameraURL returns the stream URL for a named camera. The stream itself is
// consumed by the browser, not by the console.
func (c *Client) CameraURL(name string) string {
	return c.baseURL + "/api/camera/" + url.PathEscape(name)
}

// Logs returns the robot's log file as plain text, truncated at 1MB.
func (c *Client) Logs(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/api/logs")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Close closes idle connections. Safe on a nil client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	return body, nil
}
