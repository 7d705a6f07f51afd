package assetlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Assetline HTTP API client.
type Client struct {
	BaseURL     string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, actorID string) *Client {
	return &Client{
		BaseURL: baseURL,
		ActorID: actorID,
		Timeout: 10 * time.Second,
	}
}

// StageDetail mirrors the API stage model.
type StageDetail struct {
	Status     string  `json:"status"`
	AssignedTo string  `json:"assigned_to,omitempty"`
	Reviewer   string  `json:"reviewer,omitempty"`
	Deadline   *string `json:"deadline,omitempty"`
}

// Asset mirrors the API asset model (partial).
type Asset struct {
	ID        int64                  `json:"id"`
	Name      string                 `json:"name"`
	Category  string                 `json:"category"`
	Status    string                 `json:"status"`
	Stages    []string               `json:"stages"`
	Details   map[string]StageDetail `json:"stage_details,omitempty"`
	Escalated bool                   `json:"escalated,omitempty"`
}

// Note mirrors the API note model.
type Note struct {
	Text      string `json:"text"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	Category  string `json:"category"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges the administrator secret for a bearer token and keeps
// it on the client.
func (c *Client) Login(ctx context.Context, secret string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"secret": secret}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// ListAssets returns the assets visible to the caller.
func (c *Client) ListAssets(ctx context.Context, category, status, assignee string) ([]Asset, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if status != "" {
		q.Set("status", status)
	}
	if assignee != "" {
		q.Set("assignee", assignee)
	}
	endpoint := "assets"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Asset
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetAsset fetches one asset.
func (c *Client) GetAsset(ctx context.Context, id int64) (Asset, error) {
	var resp Asset
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("assets/%d", id), nil, &resp)
	return resp, err
}

// CreateAsset creates an asset.
func (c *Client) CreateAsset(ctx context.Context, name, category string, stages []string) (Asset, error) {
	body := map[string]any{
		"name":     name,
		"category": category,
	}
	if len(stages) > 0 {
		body["stages"] = stages
	}
	var resp Asset
	err := c.do(ctx, http.MethodPost, "assets", body, &resp)
	return resp, err
}

// SetStageStatus transitions one stage of an asset.
func (c *Client) SetStageStatus(ctx context.Context, id int64, stage, status string) (Asset, error) {
	var resp Asset
	endpoint := fmt.Sprintf("assets/%d/stages/%s/status", id, url.PathEscape(stage))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// StageTargets returns the statuses the caller may set on one stage.
func (c *Client) StageTargets(ctx context.Context, id int64, stage string) ([]string, error) {
	var resp []string
	endpoint := fmt.Sprintf("assets/%d/stages/%s/targets", id, url.PathEscape(stage))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AddComment comments on an asset.
func (c *Client) AddComment(ctx context.Context, id int64, text string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("assets/%d/comments", id), map[string]any{"text": text}, nil)
}

// ReportIssue files an issue against one stage.
func (c *Client) ReportIssue(ctx context.Context, id int64, stage, description string) error {
	body := map[string]any{"stage": stage, "description": description}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("assets/%d/issues", id), body, nil)
}

// ResolveIssue resolves an issue by index.
func (c *Client) ResolveIssue(ctx context.Context, id int64, index int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("assets/%d/issues/%d/resolve", id, index), nil, nil)
}

// Notes lists the notes filed under an asset.
func (c *Client) Notes(ctx context.Context, id int64, category string) ([]Note, error) {
	endpoint := fmt.Sprintf("assets/%d/notes", id)
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}
	var resp []Note
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Users returns the user roster.
func (c *Client) Users(ctx context.Context) ([]string, error) {
	return c.roster(ctx, "users")
}

// Roles returns the role roster.
func (c *Client) Roles(ctx context.Context) ([]string, error) {
	return c.roster(ctx, "roles")
}

// Categories returns the category ordering.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	return c.roster(ctx, "categories")
}

func (c *Client) roster(ctx context.Context, kind string) ([]string, error) {
	var resp struct {
		Names []string `json:"names"`
	}
	err := c.do(ctx, http.MethodGet, kind, nil, &resp)
	return resp.Names, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/api/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
