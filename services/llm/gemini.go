package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sahilchouksey/devpilot-api/utils/metrics"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiChatModel      = "gemini-1.5-flash"
	DefaultGeminiEmbeddingModel = "text-embedding-004"

	geminiProviderName = "gemini"
)

// GeminiConfig holds configuration for the Gemini client
type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// GeminiClient implements Provider on top of the Gemini API
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	timeout        time.Duration
}

// NewGeminiClient opens a Gemini API client
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, newProviderError(geminiProviderName, ErrCodeAPIKey, "GEMINI_API_KEY is not set", nil)
	}
	if config.ChatModel == "" {
		config.ChatModel = DefaultGeminiChatModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultGeminiEmbeddingModel
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRequestTimeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, newProviderError(geminiProviderName, ErrCodeServiceDown, "failed to create client", err)
	}

	return &GeminiClient{
		client:         client,
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		timeout:        config.Timeout,
	}, nil
}

// Name returns the provider name
func (g *GeminiClient) Name() string {
	return geminiProviderName
}

// Close releases the underlying client
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) model(systemPrompt string, maxTokens int32, temperature float32) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temperature,
	}
	return model
}

// Classify asks the model for a YES/NO verdict
func (g *GeminiClient) Classify(ctx context.Context, text string) (ok bool, err error) {
	start := time.Now()
	defer func() { metrics.ObserveModelCall(geminiProviderName, "classify", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model(ClassifierPrompt, 5, 0).GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return false, newProviderError(geminiProviderName, ErrCodeServiceDown, "classification failed", err)
	}
	reply, err := responseText(resp)
	if err != nil {
		return false, err
	}
	return ParseClassification(geminiProviderName, reply)
}

// Complete replays prior messages as chat history and sends the last one
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt string, messages []Message) (reply string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveModelCall(geminiProviderName, "complete", start, err) }()

	if len(messages) == 0 {
		return "", newProviderError(geminiProviderName, ErrCodeInvalidInput, "no messages to send", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cs := g.model(systemPrompt, 2000, 0.7).StartChat()
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		history = append(history, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return "", newProviderError(geminiProviderName, ErrCodeServiceDown, "completion failed", err)
	}
	return responseText(resp)
}

// Embed returns the embedding vector for text
func (g *GeminiClient) Embed(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() { metrics.ObserveModelCall(geminiProviderName, "embed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.client.EmbeddingModel(g.embeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, newProviderError(geminiProviderName, ErrCodeServiceDown, "embedding failed", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, newProviderError(geminiProviderName, ErrCodeEmptyResponse, "no embedding returned", nil)
	}
	return res.Embedding.Values, nil
}

// geminiRole maps message roles to the roles Gemini accepts in history
func geminiRole(role string) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", newProviderError(geminiProviderName, ErrCodeEmptyResponse, "no candidates returned", nil)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", newProviderError(geminiProviderName, ErrCodeEmptyResponse,
			fmt.Sprintf("empty reply (finish reason %v)", resp.Candidates[0].FinishReason), nil)
	}
	return text, nil
}
