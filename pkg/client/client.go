package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/supervisor"
)

// Client talks to a serverstarter daemon over its HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // optional logger for client operations
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new serverstarter API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound
}

type startReq struct {
	ID     string          `json:"id"`
	Server instance.Server `json:"server"`
}

type executeReq struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

type logsResp struct {
	ID    string   `json:"id"`
	Lines []string `json:"lines"`
}

type errorResp struct {
	Error string `json:"error"`
}

// Start asks the daemon to spawn a supervised server under id.
func (c *Client) Start(ctx context.Context, id string, srv instance.Server) error {
	c.logger.Debug("starting server", "id", id, "server", srv.Name)
	data, err := json.Marshal(startReq{ID: id, Server: srv})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/start", data, nil)
}

// Stop asks the daemon to stop the server for id.
func (c *Client) Stop(ctx context.Context, id string) error {
	c.logger.Debug("stopping server", "id", id)
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/stop?id="+url.QueryEscape(id), nil, nil)
}

// Execute injects a console command into the server for id.
func (c *Client) Execute(ctx context.Context, id, command string) error {
	c.logger.Debug("executing command", "id", id, "command", command)
	data, err := json.Marshal(executeReq{ID: id, Command: command})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/execute", data, nil)
}

// Logs fetches the captured console lines for id.
func (c *Client) Logs(ctx context.Context, id string) ([]string, error) {
	var out logsResp
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/logs?id="+url.QueryEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

// Status fetches the status snapshot for one id.
func (c *Client) Status(ctx context.Context, id string) (supervisor.Status, error) {
	var out supervisor.Status
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/status?id="+url.QueryEscape(id), nil, &out)
	return out, err
}

// StatusAll fetches status snapshots for every supervised server.
func (c *Client) StatusAll(ctx context.Context) ([]supervisor.Status, error) {
	var out []supervisor.Status
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/status", nil, &out)
	return out, err
}

// doRequest performs an HTTP request with common error handling and optional
// JSON decoding of the success body into out.
func (c *Client) doRequest(ctx context.Context, method, reqURL string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", reqURL)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var er errorResp
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		c.logger.Error("API request failed", "error", er.Error, "status", resp.StatusCode)
		return fmt.Errorf("API error: %s", er.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
