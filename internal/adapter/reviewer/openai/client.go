// Package openai dispatches review batches to an OpenAI-compatible chat
// completions backend and parses the structured findings it returns.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	reviewerhttp "github.com/bkyoung/pr-council/internal/adapter/reviewer/http"
	"github.com/bkyoung/pr-council/internal/determinism"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second
	backendName    = "openai"
)

// HTTPClient is an HTTP client for an OpenAI-compatible API.
type HTTPClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retry   reviewerhttp.RetryConfig
}

// NewHTTPClient creates a new client for the given model.
func NewHTTPClient(apiKey, model string) *HTTPClient {
	return &HTTPClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   reviewerhttp.DefaultRetryConfig(),
	}
}

// SetBaseURL sets a custom base URL (self-hosted backends, tests).
func (c *HTTPClient) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the HTTP timeout.
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRetryConfig overrides the retry behavior.
func (c *HTTPClient) SetRetryConfig(retry reviewerhttp.RetryConfig) {
	c.retry = retry
}

// APIResponse is the parsed result of one completion call.
type APIResponse struct {
	Text         string
	TokensIn     int
	TokensOut    int
	Model        string
	FinishReason string
}

// Call makes a request to the chat completions endpoint with retries.
func (c *HTTPClient) Call(ctx context.Context, system, prompt string, maxTokens int) (*APIResponse, error) {
	// Zero temperature plus a seed derived from the input keeps repeated
	// runs over the same diff as reproducible as the backend allows.
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.0,
		Seed:        determinism.Seed(c.model, system, prompt),
		MaxTokens:   maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"

	var response *APIResponse
	operation := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return reviewerhttp.NewTimeoutError(backendName, "request timed out")
			}
			return reviewerhttp.NewTimeoutError(backendName, err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return handleErrorResponse(resp.StatusCode, body)
		}

		var chatResp ChatCompletionResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}

		response = &APIResponse{
			Text:         chatResp.Choices[0].Message.Content,
			TokensIn:     chatResp.Usage.PromptTokens,
			TokensOut:    chatResp.Usage.CompletionTokens,
			Model:        chatResp.Model,
			FinishReason: chatResp.Choices[0].FinishReason,
		}
		return nil
	}

	if err := reviewerhttp.RetryWithBackoff(ctx, operation, c.retry); err != nil {
		return nil, err
	}
	return response, nil
}

// handleErrorResponse converts HTTP error responses to typed errors.
func handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	} else if len(body) > 0 && len(body) < 200 {
		message = string(body)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return reviewerhttp.NewAuthenticationError(backendName, message)
	case http.StatusTooManyRequests:
		return reviewerhttp.NewRateLimitError(backendName, message)
	case http.StatusBadRequest:
		return reviewerhttp.NewInvalidRequestError(backendName, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return reviewerhttp.NewServiceUnavailableError(backendName, message)
	default:
		return &reviewerhttp.Error{
			Type:       reviewerhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Backend:    backendName,
		}
	}
}
