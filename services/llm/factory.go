package llm

import (
	"context"
	"fmt"

	"github.com/sahilchouksey/devpilot-api/config"
)

// NewProvider builds the provider selected by AI_PROVIDER
func NewProvider(ctx context.Context, env *config.EnvironmentVariable) (Provider, error) {
	switch env.AI_PROVIDER {
	case "", openAIProviderName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:          env.OPENAI_API_KEY,
			BaseURL:         env.OPENAI_BASE_URL,
			ChatModel:       env.OPENAI_CHAT_MODEL,
			ClassifierModel: env.OPENAI_CLASSIFIER_MODEL,
			EmbeddingModel:  env.OPENAI_EMBEDDING_MODEL,
		}), nil
	case geminiProviderName:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:         env.GEMINI_API_KEY,
			ChatModel:      env.GEMINI_CHAT_MODEL,
			EmbeddingModel: env.GEMINI_EMBEDDING_MODEL,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, env.AI_PROVIDER)
	}
}
