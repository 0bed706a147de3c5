package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the dunning platform.
type Config struct {
	APIURL      string // Base URL, e.g. "http://localhost:8080"
	AdminSecret string // Admin secret for model lifecycle tools (optional)
}

// DunningClient is a pure HTTP client for the dunning platform API.
type DunningClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewDunningClient creates a new client for the dunning platform.
func NewDunningClient(cfg Config) *DunningClient {
	return &DunningClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *DunningClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.AdminSecret != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AdminSecret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ScoreCustomer runs a full evaluation (rule level plus probability score)
// for one customer snapshot.
func (c *DunningClient) ScoreCustomer(ctx context.Context, customerKey string, metrics map[string]any) (json.RawMessage, error) {
	path := "/v1/customers/" + url.PathEscape(customerKey) + "/score"
	return c.doRequest(ctx, http.MethodPost, path, nil, map[string]any{"metrics": metrics})
}

// ListAssessments returns recent assessments for one customer.
func (c *DunningClient) ListAssessments(ctx context.Context, customerKey string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/customers/" + url.PathEscape(customerKey) + "/assessments"
	return c.doRequest(ctx, http.MethodGet, path, q, nil)
}

// ListRules returns the configured classification rules.
func (c *DunningClient) ListRules(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/rules", nil, nil)
}

// GetActiveModel returns the currently active learned model.
func (c *DunningClient) GetActiveModel(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/models/active", nil, nil)
}

// ModelScore scores a customer snapshot with the active learned model.
func (c *DunningClient) ModelScore(ctx context.Context, customerKey string, metrics map[string]any, asOf string) (json.RawMessage, error) {
	body := map[string]any{"metrics": metrics}
	if asOf != "" {
		body["asOf"] = asOf
	}
	path := "/v1/customers/" + url.PathEscape(customerKey) + "/model-score"
	return c.doRequest(ctx, http.MethodPost, path, nil, body)
}

// ListTrainingRuns returns recent training runs.
func (c *DunningClient) ListTrainingRuns(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/training-runs", q, nil)
}
