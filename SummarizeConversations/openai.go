package SummarizeConversations

import (
	"context"
	"fmt"

	"slack-thread-summarizer/Config"
	"slack-thread-summarizer/Models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiCompleter struct {
	client      openai.Client
	model       string
	temperature float64
}

func newOpenAICompleter(cfg Config.LLMConfig) *openaiCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.Project != "" {
		opts = append(opts, option.WithProject(cfg.Project))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &openaiCompleter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
	}
}

func (c *openaiCompleter) Complete(ctx context.Context, messages []PromptMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    convertOpenAIMessages(messages),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openaiCompleter) Model() string {
	return c.model
}

func convertOpenAIMessages(messages []PromptMessage) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case Models.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case Models.RoleUser:
			if msg.SpeakerLabel != "" {
				result = append(result, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Name: openai.String(SanitizeName(msg.SpeakerLabel)),
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(msg.Content),
						},
					},
				})
			} else {
				result = append(result, openai.UserMessage(msg.Content))
			}
		}
	}

	return result
}
