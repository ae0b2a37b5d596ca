package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storyweave/gamemaster/pkg/llm"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"

	defaultAnthropicMaxTokens = 2048
)

// AnthropicService implements llm.Generator for Anthropic Claude.
type AnthropicService struct {
	baseURL       string
	apiKey        string
	modelName     string
	fastModelName string
	httpClient    *http.Client
	logger        *slog.Logger
	retryBase     time.Duration
}

var _ llm.Generator = (*AnthropicService)(nil)

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicService(apiKey, modelName, fastModelName string, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		baseURL:       defaultAnthropicBaseURL,
		apiKey:        apiKey,
		modelName:     modelName,
		fastModelName: fastModelName,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger:    logger,
		retryBase: defaultRetryBase,
	}
}

func (a *AnthropicService) modelFor(variant llm.ModelVariant) string {
	if variant == llm.VariantFast && a.fastModelName != "" {
		return a.fastModelName
	}
	return a.modelName
}

func (a *AnthropicService) Generate(ctx context.Context, prompt string, variant llm.ModelVariant) (string, error) {
	model := a.modelFor(variant)
	return generateWithRetries(ctx, a.logger, a.retryBase, func(ctx context.Context) (string, error) {
		return a.messages(ctx, prompt, model)
	})
}

func (a *AnthropicService) messages(ctx context.Context, prompt string, model string) (string, error) {
	temperature := 0.7
	request := anthropicRequest{
		Model:       model,
		MaxTokens:   defaultAnthropicMaxTokens,
		Temperature: &temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{status: resp.StatusCode, body: string(body)}
	}

	var anthResp anthropicResponse
	if err := json.Unmarshal(body, &anthResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if anthResp.Error != nil {
		return "", fmt.Errorf("API error: %s", anthResp.Error.Message)
	}

	for _, block := range anthResp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content found in response")
}
