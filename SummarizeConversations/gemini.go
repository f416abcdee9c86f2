package SummarizeConversations

import (
	"context"
	"fmt"
	"strings"

	"slack-thread-summarizer/Config"
	"slack-thread-summarizer/Models"

	"google.golang.org/genai"
)

type geminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func newGeminiCompleter(ctx context.Context, cfg Config.LLMConfig) (*geminiCompleter, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	genAiClient, genAiError := genai.NewClient(ctx, clientConfig)
	if genAiError != nil {
		return nil, fmt.Errorf("create gemini client: %w", genAiError)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &geminiCompleter{
		client:      genAiClient,
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *geminiCompleter) Complete(ctx context.Context, messages []PromptMessage) (string, error) {
	systemInstruction, contents := convertGeminiMessages(messages)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if systemInstruction != nil {
		config.SystemInstruction = systemInstruction
	}

	// the API rejects a request without user contents
	if len(contents) == 0 {
		contents = []*genai.Content{genai.NewContentFromText("Summarize.", genai.RoleUser)}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoChoices
	}
	return resp.Text(), nil
}

func (c *geminiCompleter) Model() string {
	return c.model
}

// convertGeminiMessages folds system entries into one system instruction and keeps user
// entries as user contents. Gemini has no participant name, so speaker labels are dropped.
func convertGeminiMessages(messages []PromptMessage) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case Models.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case Models.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser), contents
}
