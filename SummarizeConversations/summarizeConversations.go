package SummarizeConversations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"slack-thread-summarizer/Config"
	"slack-thread-summarizer/Models"
)

type PromptMessage = Models.PromptMessage

const (
	// posted instead of a summary whenever the completion call fails
	FailureText = "Error summarizing text."
	EmptyText   = "No summary found."
)

var ErrNoChoices = errors.New("no choices in response")

var nameInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Completer sends a prompt to a completion provider and returns the first answer.
type Completer interface {
	Complete(ctx context.Context, messages []PromptMessage) (string, error)
	Model() string
}

// NewCompleter selects the provider named by cfg.Provider.
func NewCompleter(ctx context.Context, cfg Config.LLMConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	switch cfg.Provider {
	case Config.ProviderOpenAI, "":
		return newOpenAICompleter(cfg), nil
	case Config.ProviderGemini:
		return newGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Invoker hides provider failures from callers: it always returns text that can be posted.
type Invoker struct {
	completer Completer
}

func NewInvoker(completer Completer) *Invoker {
	return &Invoker{completer: completer}
}

func (i *Invoker) Invoke(ctx context.Context, messages []PromptMessage) string {
	start := time.Now()
	answer, completeError := i.completer.Complete(ctx, messages)
	if completeError != nil {
		slog.ErrorContext(ctx, "SummarizeConversations:Invoke#Error summarizing text",
			"model", i.completer.Model(),
			"error", completeError)
		return FailureText
	}

	slog.DebugContext(ctx, "SummarizeConversations:Invoke#Completion received",
		"model", i.completer.Model(),
		"duration_ms", time.Since(start).Milliseconds(),
		"answer_bytes", len(answer))

	if strings.TrimSpace(answer) == "" {
		return EmptyText
	}
	return answer
}

// SanitizeName converts a speaker label to a valid OpenAI name parameter
// (^[a-zA-Z0-9_-]{1,64}$).
func SanitizeName(label string) string {
	sanitized := nameInvalidChars.ReplaceAllString(label, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}
