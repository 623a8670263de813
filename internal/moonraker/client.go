package moonraker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rudder/internal/config"
	"rudder/internal/services"
)

// StatePrinting is the print_stats state reported while a job runs.
const StatePrinting = "printing"

// HTTPDoer describes the HTTP client used by the controller client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Status is the live print state reported by the controller.
type Status struct {
	State    string
	Filename string
}

// Printing reports whether the controller is actively printing a named file.
func (s Status) Printing() bool {
	return s.State == StatePrinting
}

// Timeouts bounds each request type.
type Timeouts struct {
	Status time.Duration
	File   time.Duration
	Info   time.Duration
}

// Client reads status and files from a Moonraker instance. It never retries.
type Client struct {
	baseURL  string
	client   HTTPDoer
	timeouts Timeouts
}

// NewFromConfig builds a client from the [moonraker] config section.
func NewFromConfig(cfg *config.Config) *Client {
	return New(cfg.Moonraker.URL, Timeouts{
		Status: time.Duration(cfg.Moonraker.StatusTimeout) * time.Second,
		File:   time.Duration(cfg.Moonraker.FileTimeout) * time.Second,
		Info:   time.Duration(cfg.Moonraker.InfoTimeout) * time.Second,
	}, nil)
}

// New constructs a client. A nil doer uses http.DefaultClient; zero timeouts
// fall back to 5s for status, 10s for files and 3s for info.
func New(baseURL string, timeouts Timeouts, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if timeouts.Status <= 0 {
		timeouts.Status = 5 * time.Second
	}
	if timeouts.File <= 0 {
		timeouts.File = 10 * time.Second
	}
	if timeouts.Info <= 0 {
		timeouts.Info = 3 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:   doer,
		timeouts: timeouts,
	}
}

// BaseURL returns the controller address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type statusResponse struct {
	Result struct {
		Status struct {
			PrintStats struct {
				State    string  `json:"state"`
				Filename *string `json:"filename"`
			} `json:"print_stats"`
		} `json:"status"`
	} `json:"result"`
}

// Status queries print_stats for the current state and filename.
func (c *Client) Status(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Status)
	defer cancel()

	resp, err := c.get(ctx, "/printer/objects/query?print_stats")
	if err != nil {
		return Status{}, classify(err, "status", "query print_stats")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return Status{}, services.Wrap(services.ErrRetrieval, "moonraker", "status", fmt.Sprintf("controller returned %d", resp.StatusCode), nil)
	}

	var payload statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Status{}, classify(err, "status", "decode print_stats")
	}
	stats := payload.Result.Status.PrintStats
	status := Status{State: stats.State}
	if stats.Filename != nil {
		status.Filename = strings.TrimSpace(*stats.Filename)
	}
	return status, nil
}

// FetchFile downloads the G-code file the controller knows as filename.
// A missing file or any non-success response is an ErrRetrieval; running
// out of time is additionally marked ErrTimeout.
func (c *Client) FetchFile(ctx context.Context, filename string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.File)
	defer cancel()

	resp, err := c.get(ctx, "/server/files/gcodes/"+escapePath(filename))
	if err != nil {
		return nil, services.Wrap(services.ErrRetrieval, "moonraker", "fetch file", filename, classify(err, "fetch file", filename))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, services.WithHint(
			services.Wrap(services.ErrRetrieval, "moonraker", "fetch file", filename+" not found on controller", nil),
			"the file may have been deleted or renamed after the print started",
		)
	case resp.StatusCode != http.StatusOK:
		drain(resp.Body)
		return nil, services.Wrap(services.ErrRetrieval, "moonraker", "fetch file", fmt.Sprintf("%s: controller returned %d", filename, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrRetrieval, "moonraker", "fetch file", filename, classify(err, "fetch file", "read body"))
	}
	return data, nil
}

// Info probes /printer/info and returns nil when the controller answers 200.
func (c *Client) Info(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Info)
	defer cancel()

	resp, err := c.get(ctx, "/printer/info")
	if err != nil {
		return classify(err, "info", "")
	}
	defer resp.Body.Close()
	drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrRetrieval, "moonraker", "info", fmt.Sprintf("controller returned %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// classify maps transport failures onto the error taxonomy.
func classify(err error, operation, message string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return services.WithHint(
			services.Wrap(services.ErrTimeout, "moonraker", operation, message, err),
			"controller did not answer in time; check moonraker.url and network",
		)
	}
	return services.WithHint(
		services.Wrap(services.ErrRetrieval, "moonraker", operation, message, err),
		"check that Moonraker is running and moonraker.url is correct",
	)
}

// escapePath escapes each path segment so subdirectories keep their slashes.
func escapePath(filename string) string {
	parts := strings.Split(strings.TrimLeft(filename, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
}
