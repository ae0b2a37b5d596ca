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

// OpenAIService implements llm.Generator against any OpenAI-compatible
// chat completions endpoint (OpenAI, DeepSeek, local gateways).
type OpenAIService struct {
	baseURL       string
	apiKey        string
	modelName     string
	fastModelName string
	httpClient    *http.Client
	logger        *slog.Logger
	retryBase     time.Duration
}

var _ llm.Generator = (*OpenAIService)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates a client for an OpenAI-compatible endpoint.
// fastModelName may be empty, in which case the primary model serves
// all variants.
func NewOpenAIService(baseURL, apiKey, modelName, fastModelName string, logger *slog.Logger) *OpenAIService {
	return &OpenAIService{
		baseURL:       baseURL,
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

func (s *OpenAIService) modelFor(variant llm.ModelVariant) string {
	if variant == llm.VariantFast && s.fastModelName != "" {
		return s.fastModelName
	}
	return s.modelName
}

func (s *OpenAIService) Generate(ctx context.Context, prompt string, variant llm.ModelVariant) (string, error) {
	model := s.modelFor(variant)
	return generateWithRetries(ctx, s.logger, s.retryBase, func(ctx context.Context) (string, error) {
		return s.chatCompletion(ctx, prompt, model)
	})
}

func (s *OpenAIService) chatCompletion(ctx context.Context, prompt string, model string) (string, error) {
	request := openAIChatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
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

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from API")
	}

	content := chatResp.Choices[0].Message.Content
	if content == "" {
		// An empty completion is a protocol failure, not a valid answer;
		// surfacing it lets callers run their documented fallbacks.
		return "", fmt.Errorf("empty completion returned from API")
	}
	return content, nil
}
