package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	// Optional attribution headers; OpenRouter uses these to identify the app.
	Referer string
	Title   string
}

// BackendError is a non-success outcome from the completion backend:
// a non-2xx status, a timeout, or a response missing the answer field.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("completion backend error (status %d): %s", e.Status, e.Detail)
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
}

func NewOpenAICompatibleClient() *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Complete sends messages to <base_url>/chat/completions and returns the top
// answer text. The caller bounds the call with ctx; a deadline hit surfaces
// as a *BackendError, the same as any other non-success response.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":       cfg.Model,
		"messages":    messages,
		"temperature": cfg.Temperature,
		"stream":      false,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	if cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		req.Header.Set("X-Title", cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &BackendError{Status: http.StatusGatewayTimeout, Detail: "completion request timed out"}
		}
		return "", &BackendError{Status: http.StatusBadGateway, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &BackendError{Status: resp.StatusCode, Detail: string(raw)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &BackendError{Status: resp.StatusCode, Detail: "unparseable completion response"}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &BackendError{Status: resp.StatusCode, Detail: "completion response carried no answer"}
	}
	return parsed.Choices[0].Message.Content, nil
}
