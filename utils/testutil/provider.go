package testutil

import (
	"context"
	"sync"

	"github.com/sahilchouksey/devpilot-api/services/llm"
)

// CompleteCall records one Complete invocation
type CompleteCall struct {
	SystemPrompt string
	Messages     []llm.Message
}

// FakeProvider is a scriptable llm.Provider. Nil funcs fall back to an
// in-domain verdict, a fixed reply and a vector of EmbeddingDims ones.
type FakeProvider struct {
	ClassifyFunc func(ctx context.Context, text string) (bool, error)
	CompleteFunc func(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error)
	EmbedFunc    func(ctx context.Context, text string) ([]float32, error)

	EmbeddingDims int
	Reply         string

	mu            sync.Mutex
	classifyCalls []string
	completeCalls []CompleteCall
	embedCalls    []string
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) Classify(ctx context.Context, text string) (bool, error) {
	f.mu.Lock()
	f.classifyCalls = append(f.classifyCalls, text)
	f.mu.Unlock()

	if f.ClassifyFunc != nil {
		return f.ClassifyFunc(ctx, text)
	}
	return true, nil
}

func (f *FakeProvider) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.completeCalls = append(f.completeCalls, CompleteCall{
		SystemPrompt: systemPrompt,
		Messages:     append([]llm.Message(nil), messages...),
	})
	f.mu.Unlock()

	if f.CompleteFunc != nil {
		return f.CompleteFunc(ctx, systemPrompt, messages)
	}
	if f.Reply != "" {
		return f.Reply, nil
	}
	return "fake reply", nil
}

func (f *FakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.embedCalls = append(f.embedCalls, text)
	f.mu.Unlock()

	if f.EmbedFunc != nil {
		return f.EmbedFunc(ctx, text)
	}
	dims := f.EmbeddingDims
	if dims == 0 {
		dims = 3
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = 1
	}
	return vec, nil
}

// ClassifyCalls returns the texts passed to Classify
func (f *FakeProvider) ClassifyCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.classifyCalls...)
}

// CompleteCalls returns every recorded Complete invocation
func (f *FakeProvider) CompleteCalls() []CompleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CompleteCall(nil), f.completeCalls...)
}

// EmbedCalls returns the texts passed to Embed
func (f *FakeProvider) EmbedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embedCalls...)
}
