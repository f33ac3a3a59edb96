package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

type Draft struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Platform  string `json:"platform"`
	Generated bool   `json:"generated"`
}

type QueuedJob struct {
	JobID     string `json:"jobId"`
	State     string `json:"state"`
	StatusURL string `json:"statusUrl"`
}

type JobStatus struct {
	JobID        string          `json:"jobId"`
	State        string          `json:"state"`
	Progress     int             `json:"progress"`
	Result       json.RawMessage `json:"result"`
	FailedReason string          `json:"failedReason"`
}

type Usage struct {
	TotalGenerations int64  `json:"total_generations"`
	TotalTokens      int64  `json:"total_tokens"`
	TotalCostUSD     string `json:"total_cost_usd"`
	TodayCount       int    `json:"today_count"`
	DailyLimit       int    `json:"daily_limit"`
	RemainingQuota   int    `json:"remaining_quota"`
}

// GenerateResult holds exactly one of Draft (inline) or Job (queued).
type GenerateResult struct {
	Draft *Draft
	Job   *QueuedJob
}

// RegisterUser creates a new user account
func (c *APIClient) RegisterUser(ctx context.Context, baseName string) (*User, string, error) {
	username := fmt.Sprintf("%s_%d", baseName, time.Now().UnixNano()%1000000)

	body := map[string]string{
		"username": username,
		"email":    username + "@sim.scripta.local",
		"password": "testpassword123",
	}

	var result AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, "", http.StatusCreated, &result); err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}

	return &result.User, result.Token, nil
}

// Generate requests a post. Async forces the request through the queue.
func (c *APIClient) Generate(ctx context.Context, token, topic, platform string, async bool) (*GenerateResult, error) {
	body := map[string]interface{}{
		"topic":    topic,
		"tone":     "friendly",
		"platform": platform,
		"async":    async,
	}

	resp, err := c.send(ctx, http.MethodPost, "/ai/generate", body, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var draft Draft
		if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
			return nil, fmt.Errorf("failed to decode draft: %w", err)
		}
		return &GenerateResult{Draft: &draft}, nil
	case http.StatusAccepted:
		var job QueuedJob
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		return &GenerateResult{Job: &job}, nil
	default:
		return nil, statusError(resp)
	}
}

func (c *APIClient) JobStatus(ctx context.Context, token, jobID string) (*JobStatus, error) {
	var status JobStatus
	if err := c.do(ctx, http.MethodGet, "/ai/jobs/"+jobID, nil, token, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *APIClient) Usage(ctx context.Context, token string) (*Usage, error) {
	var usage Usage
	if err := c.do(ctx, http.MethodGet, "/ai/usage/me", nil, token, http.StatusOK, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}, token string, want int, out interface{}) error {
	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) send(ctx context.Context, method, path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("status %d: %s", resp.StatusCode, string(bytes.TrimSpace(bodyBytes)))
}
