package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sahilchouksey/devpilot-api/utils/metrics"
)

const (
	// OpenAIBaseURL is the default OpenAI-compatible API base URL
	OpenAIBaseURL = "https://api.openai.com"
	// DefaultRequestTimeout bounds every model call
	DefaultRequestTimeout = 120 * time.Second

	DefaultOpenAIChatModel       = "gpt-4-turbo-preview"
	DefaultOpenAIClassifierModel = "gpt-3.5-turbo"
	DefaultOpenAIEmbeddingModel  = "text-embedding-ada-002"

	openAIProviderName = "openai"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	ChatModel       string
	ClassifierModel string
	EmbeddingModel  string
}

// OpenAIClient talks to any OpenAI-compatible chat completions and embeddings API
type OpenAIClient struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	chatModel       string
	classifierModel string
	embeddingModel  string
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = OpenAIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRequestTimeout
	}
	if config.ChatModel == "" {
		config.ChatModel = DefaultOpenAIChatModel
	}
	if config.ClassifierModel == "" {
		config.ClassifierModel = DefaultOpenAIClassifierModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultOpenAIEmbeddingModel
	}

	return &OpenAIClient{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		chatModel:       config.ChatModel,
		classifierModel: config.ClassifierModel,
		embeddingModel:  config.EmbeddingModel,
	}
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return openAIProviderName
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Classify asks the classifier model for a YES/NO verdict
func (c *OpenAIClient) Classify(ctx context.Context, text string) (ok bool, err error) {
	start := time.Now()
	defer func() { metrics.ObserveModelCall(openAIProviderName, "classify", start, err) }()

	reply, err := c.chatCompletion(ctx, chatCompletionRequest{
		Model: c.classifierModel,
		Messages: []chatMessage{
			{Role: "system", Content: ClassifierPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens:   5,
		Temperature: 0,
	})
	if err != nil {
		return false, err
	}
	return ParseClassification(openAIProviderName, reply)
}

// Complete sends the system prompt and history to the chat model
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, messages []Message) (reply string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveModelCall(openAIProviderName, "complete", start, err) }()

	msgs := make([]chatMessage, 0, len(messages)+1)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	return c.chatCompletion(ctx, chatCompletionRequest{
		Model:            c.chatModel,
		Messages:         msgs,
		MaxTokens:        2000,
		Temperature:      0.7,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	})
}

// Embed returns the embedding vector for text
func (c *OpenAIClient) Embed(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() { metrics.ObserveModelCall(openAIProviderName, "embed", start, err) }()

	var result embeddingResponse
	if err := c.post(ctx, "/v1/embeddings", embeddingRequest{Model: c.embeddingModel, Input: text}, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, newProviderError(openAIProviderName, ErrCodeEmptyResponse, "no embedding returned", nil)
	}
	return result.Data[0].Embedding, nil
}

func (c *OpenAIClient) chatCompletion(ctx context.Context, req chatCompletionRequest) (string, error) {
	var result chatCompletionResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", newProviderError(openAIProviderName, ErrCodeEmptyResponse, "no choices returned", nil)
	}
	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return "", newProviderError(openAIProviderName, ErrCodeEmptyResponse, "empty completion", nil)
	}
	return content, nil
}

// post performs an authenticated JSON request and decodes the response into out
func (c *OpenAIClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return newProviderError(openAIProviderName, ErrCodeInvalidInput, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return newProviderError(openAIProviderName, ErrCodeRequest, "failed to create request", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return newProviderError(openAIProviderName, ErrCodeServiceDown, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return newProviderError(openAIProviderName, ErrCodeRequest, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newProviderError(openAIProviderName, statusCode(resp.StatusCode),
			fmt.Sprintf("API error (status %d)", resp.StatusCode), fmt.Errorf("%s", truncate(string(respBody), 200)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return newProviderError(openAIProviderName, ErrCodeRequest, "failed to decode response", err)
	}
	return nil
}

func statusCode(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeAPIKey
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case status == http.StatusBadRequest:
		return ErrCodeInvalidInput
	case status >= 500:
		return ErrCodeServiceDown
	default:
		return ErrCodeRequest
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
