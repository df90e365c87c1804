// Package api is the HTTP client of the admin server operations API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
)

const requestIDHeader = "X-Request-ID"

// ClientConfig is the configuration of the HTTP API client.
type ClientConfig struct {
	// BaseURL is the admin server URL (e.g. "http://127.0.0.1:8080").
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// HTTPClient has no timeout by default: requests are bounded by their context.
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Client"})
	return nil
}

// Client is the HTTP implementation of the operations API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient returns a new HTTP API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types ---

type launchResponseJSON struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type logEntryJSON struct {
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
}

type taskStatusJSON struct {
	StatusSummary string         `json:"status_summary"`
	Success       *bool          `json:"success"`
	IsDone        bool           `json:"is_done"`
	LogEntries    []logEntryJSON `json:"log_entries"`
	ResultMessage string         `json:"result_message"`
}

func (t taskStatusJSON) toModel() *model.TaskStatus {
	entries := make([]model.LogEntry, 0, len(t.LogEntries))
	for _, e := range t.LogEntries {
		entries = append(entries, model.LogEntry{
			Timestamp: e.Timestamp,
			Level:     model.ParseLogLevel(e.Level),
			Message:   e.Message,
			Detail:    e.Detail,
		})
	}

	return &model.TaskStatus{
		StatusSummary: t.StatusSummary,
		Success:       t.Success,
		IsDone:        t.IsDone,
		LogEntries:    entries,
		ResultMessage: t.ResultMessage,
	}
}

type backupJSON struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type backupsJSON struct {
	Backups []backupJSON `json:"backups"`
}

// --- API ---

// Launch sends the initiating request of an operation. A server answer without a task
// ID is returned as an unsuccessful result, not as an error.
func (c *Client) Launch(ctx context.Context, endpoint string, payload map[string]any) (*model.LaunchResult, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not encode payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send launch request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read launch response: %w", err)
	}

	var lr launchResponseJSON
	if err := json.Unmarshal(data, &lr); err != nil {
		if !isSuccess(resp.StatusCode) {
			return nil, fmt.Errorf("launch request returned HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("could not decode launch response: %w", err)
	}

	res := &model.LaunchResult{
		Success: lr.Success && isSuccess(resp.StatusCode),
		TaskID:  lr.TaskID,
		Message: lr.Message,
	}
	if res.Message == "" && !isSuccess(resp.StatusCode) {
		res.Message = fmt.Sprintf("launch request returned HTTP %d", resp.StatusCode)
	}

	c.logger.Debugf("Launch %s answered HTTP %d (task: %q)", endpoint, resp.StatusCode, res.TaskID)
	return res, nil
}

// TaskStatus fetches the status of a task. It returns model.ErrTaskNotFound on 404,
// model.ErrPollTransport on transport or HTTP failures and model.ErrEmptyResponse when a
// successful response has no usable body.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(conventions.TaskStatusEndpoint, url.PathEscape(taskID)), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", model.ErrPollTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrTaskNotFound)
	case !isSuccess(resp.StatusCode):
		return nil, fmt.Errorf("%w: HTTP %d %s", model.ErrPollTransport, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read body: %w", model.ErrPollTransport, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, model.ErrEmptyResponse
	}

	var ts taskStatusJSON
	if err := json.Unmarshal(trimmed, &ts); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrEmptyResponse, err)
	}

	return ts.toModel(), nil
}

// Ping checks the server is alive, any 2xx is a success.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, conventions.PingEndpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not ping server: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("ping returned HTTP %d", resp.StatusCode)
	}

	return nil
}

// ListBackups returns the backups available on the server.
func (c *Client) ListBackups(ctx context.Context) ([]model.Backup, error) {
	req, err := c.newRequest(ctx, http.MethodGet, conventions.BackupsEndpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not list backups: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("list backups returned HTTP %d", resp.StatusCode)
	}

	var bj backupsJSON
	if err := json.NewDecoder(resp.Body).Decode(&bj); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode backups: %w", err)
	}

	backups := make([]model.Backup, 0, len(bj.Backups))
	for _, b := range bj.Backups {
		backups = append(backups, model.Backup{Name: b.Name, SizeBytes: b.SizeBytes, CreatedAt: b.CreatedAt})
	}

	return backups, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

// url resolves endpoint against the base URL. Absolute URLs are used as they are.
func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }
