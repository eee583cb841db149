package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codebench/internal/common"
)

// Execution service status ids. Anything above StatusIDRunning is terminal.
const (
	StatusIDInQueue      = 1
	StatusIDRunning      = 2
	StatusIDAccepted     = 3
	StatusIDRuntimeError = 4
)

// BatchItem is one test-case execution request sent to the execution service.
type BatchItem struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

// TestResult is the raw per-test-case outcome reported by the execution
// service. It is ephemeral: consumed by Aggregate or returned to the caller,
// never persisted.
type TestResult struct {
	Token         string  `json:"token"`
	StatusID      int     `json:"status_id"`
	Time          *string `json:"time"`   // elapsed seconds, decimal string; null until terminal
	Memory        *int    `json:"memory"` // KB; null until terminal
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
}

// Terminal reports whether the execution service will make no further
// progress on this result.
func (r TestResult) Terminal() bool {
	return r.StatusID > StatusIDRunning
}

// Client talks to the external execution service. It is constructed once and
// injected into the services that grade code, so tests can point it at a fake.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiHost    string
}

func NewClient(baseURL, apiKey, apiHost string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiHost:    apiHost,
	}
}

type batchSubmitRequest struct {
	Submissions []BatchItem `json:"submissions"`
}

type batchSubmitToken struct {
	Token string `json:"token"`
}

type batchStatusResponse struct {
	Submissions []TestResult `json:"submissions"`
}

// SubmitBatch dispatches one batch of test-case executions and returns the
// service's opaque tokens, one per item, in item order.
func (c *Client) SubmitBatch(ctx context.Context, items []BatchItem) ([]string, error) {
	body, err := json.Marshal(batchSubmitRequest{Submissions: items})
	if err != nil {
		return nil, fmt.Errorf("judge.SubmitBatch marshal: %w", err)
	}

	endpoint := c.baseURL + "/submissions/batch?base64_encoded=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("judge.SubmitBatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge.SubmitBatch: %v: %w", err, common.ErrExecutorUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("judge.SubmitBatch: executor returned status %d: %w", resp.StatusCode, common.ErrExecutorUnavailable)
	}

	var created []batchSubmitToken
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("judge.SubmitBatch decode: %v: %w", err, common.ErrExecutorUnavailable)
	}
	if len(created) != len(items) {
		return nil, fmt.Errorf("judge.SubmitBatch: expected %d tokens, got %d: %w", len(items), len(created), common.ErrExecutorUnavailable)
	}

	tokens := make([]string, len(created))
	for i, t := range created {
		tokens[i] = t.Token
	}
	return tokens, nil
}

// FetchBatch queries the current status of every token in one call. Results
// come back in the same order the tokens were passed.
func (c *Client) FetchBatch(ctx context.Context, tokens []string) ([]TestResult, error) {
	params := url.Values{}
	params.Set("tokens", strings.Join(tokens, ","))
	params.Set("base64_encoded", "false")
	params.Set("fields", "*")

	endpoint := c.baseURL + "/submissions/batch?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("judge.FetchBatch request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge.FetchBatch: %v: %w", err, common.ErrExecutorUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("judge.FetchBatch: executor returned status %d: %w", resp.StatusCode, common.ErrExecutorUnavailable)
	}

	var status batchStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("judge.FetchBatch decode: %v: %w", err, common.ErrExecutorUnavailable)
	}
	if len(status.Submissions) != len(tokens) {
		return nil, fmt.Errorf("judge.FetchBatch: expected %d results, got %d: %w", len(tokens), len(status.Submissions), common.ErrExecutorUnavailable)
	}
	return status.Submissions, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-rapidapi-key", c.apiKey)
	}
	if c.apiHost != "" {
		req.Header.Set("x-rapidapi-host", c.apiHost)
	}
}
