package BuildPrompt

import (
	"fmt"
	"strings"

	"slack-thread-summarizer/Models"
)

type PromptMessage = Models.PromptMessage

const (
	ContextHeader = "THREAD_MESSAGE_CONTEXT:\n"
	// marks a real question so the model can tell it apart from conversation lines
	QuestionSentinel = "@#*&Question: "
	// never matches a Slack display name, so the question cannot be mistaken for a participant
	QuestionSpeaker = "definitely_not_a_bot"

	DefaultLanguage = "Korean"
)

const summarizeInstruction = `You are a helpful assistant.
You will summarize the conversation using %s only.
Create a helpful summary WITHOUT ORIGINAL MESSAGES.
Do not include the messages directly in the summary.
If user request to summarize in specific form, follow the request.`

const summarizeWithQuestionInstruction = `You are a helpful assistant.
You will answer using %s only.
You should answer the question in the last message, which starts with ` + "`" + QuestionSentinel + "`" + `, using the conversation as context.
Do not include the messages directly in the answer.
If user request to summarize in specific form, follow the request.`

const askInstruction = `You are a helpful assistant.
The answer should be helpful and informative.
The answer should be in %s.
The answer should be in a professional tone.
The answer should be relevant to the question.`

// Summarize builds the prompt for a summary of the conversation lines, or for an answer to
// question about them when question is not empty.
func Summarize(conversation []string, question, language string) []PromptMessage {
	language = languageOrDefault(language)

	instruction := summarizeInstruction
	if question != "" {
		instruction = summarizeWithQuestionInstruction
	}

	messages := []PromptMessage{
		Models.SystemMessage(fmt.Sprintf(instruction, language)),
		Models.SystemMessage(ContextHeader + strings.Join(conversation, "\n")),
	}
	if question != "" {
		messages = append(messages, Models.UserMessage(QuestionSentinel+question, QuestionSpeaker))
	}
	return messages
}

// Ask builds a context-free prompt for a direct question.
func Ask(question, language string) []PromptMessage {
	return []PromptMessage{
		Models.SystemMessage(fmt.Sprintf(askInstruction, languageOrDefault(language))),
		Models.UserMessage(question, ""),
	}
}

func languageOrDefault(language string) string {
	if strings.TrimSpace(language) == "" {
		return DefaultLanguage
	}
	return language
}
