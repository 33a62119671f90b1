// Package llm adapts external language-model APIs to the three operations
// the service needs: domain classification, chat completion and embeddings.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message roles understood by every provider
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history
type Message struct {
	Role    string
	Content string
}

// Provider is implemented by each language-model backend
type Provider interface {
	// Classify reports whether text is a software-engineering query
	Classify(ctx context.Context, text string) (bool, error)
	// Complete returns the reply to the last message given the system prompt and history
	Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error)
	// Embed returns a vector representation of text
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// ProviderError wraps every adapter failure
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeAPIKey        = "invalid_api_key"
	ErrCodeRateLimit     = "rate_limit_exceeded"
	ErrCodeServiceDown   = "service_unavailable"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeTimeout       = "timeout"
	ErrCodeEmptyResponse = "empty_response"
	ErrCodeRequest       = "request_failed"
)

// ErrUnknownProvider is returned by NewProvider for an unsupported name
var ErrUnknownProvider = errors.New("unknown AI provider")

func newProviderError(provider, code, message string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return &ProviderError{Provider: provider, Code: code, Message: message, Err: err}
}

// ClassifierPrompt instructs the model to answer YES or NO
const ClassifierPrompt = `You are a classifier that determines if a query is related to software engineering.
Software engineering topics include: programming languages, frameworks, databases,
system design, algorithms, data structures, debugging, code review, testing,
deployment, DevOps, cloud computing, software architecture, design patterns,
version control, API development, web development, mobile development,
machine learning engineering, and career advice for software engineers.

Respond with only "YES" if the query is related to software engineering,
or "NO" if it's not related to software engineering.`

// ParseClassification interprets a classifier reply
func ParseClassification(provider, reply string) (bool, error) {
	answer := strings.ToUpper(strings.Trim(strings.TrimSpace(reply), ".!\"'"))
	switch answer {
	case "YES":
		return true, nil
	case "NO":
		return false, nil
	case "":
		return false, newProviderError(provider, ErrCodeEmptyResponse, "empty classifier reply", nil)
	default:
		return false, newProviderError(provider, ErrCodeInvalidInput, fmt.Sprintf("unexpected classifier reply %q", answer), nil)
	}
}
