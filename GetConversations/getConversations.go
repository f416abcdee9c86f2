package GetConversations

import (
	"context"
	"log/slog"

	"slack-thread-summarizer/Models"

	"github.com/slack-go/slack"
)

type ChatMessage = Models.ChatMessage

// ConversationsApi is the part of *slack.Client used to read channel and thread history.
type ConversationsApi interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
}

// FetchRecentMessages returns up to limit messages in chronological order. With a thread id
// the thread replies are read, otherwise the channel history. Any failure yields an empty list.
func FetchRecentMessages(ctx context.Context, api ConversationsApi, channelId string, limit int, threadId string) []ChatMessage {
	if threadId != "" {
		return fetchThreadReplies(ctx, api, channelId, limit, threadId)
	}
	return fetchChannelHistory(ctx, api, channelId, limit)
}

func fetchThreadReplies(ctx context.Context, api ConversationsApi, channelId string, limit int, threadId string) []ChatMessage {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelId,
		// the parent message timestamp identifies the thread
		Timestamp: threadId,
		Limit:     limit,
	}

	// sorted in increasing order of timestamp
	threadConversations, _, _, getConversationRepliesError := api.GetConversationRepliesContext(ctx, params)
	if getConversationRepliesError != nil {
		slog.WarnContext(ctx, "GetConversations:fetchThreadReplies#Error while fetching the conversation replies",
			"error", getConversationRepliesError)
		return []ChatMessage{}
	}

	messages := make([]ChatMessage, 0, len(threadConversations))
	for _, threadConversation := range threadConversations {
		messages = append(messages, toChatMessage(threadConversation, channelId, threadId))
	}
	return messages
}

func fetchChannelHistory(ctx context.Context, api ConversationsApi, channelId string, limit int) []ChatMessage {
	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelId,
		Limit:     limit,
	}

	history, getConversationHistoryError := api.GetConversationHistoryContext(ctx, params)
	if getConversationHistoryError != nil {
		slog.WarnContext(ctx, "GetConversations:fetchChannelHistory#Error while fetching the channel history",
			"error", getConversationHistoryError)
		return []ChatMessage{}
	}
	if history == nil {
		return []ChatMessage{}
	}

	// history comes newest first
	messages := make([]ChatMessage, 0, len(history.Messages))
	for i := len(history.Messages) - 1; i >= 0; i-- {
		messages = append(messages, toChatMessage(history.Messages[i], channelId, ""))
	}
	return messages
}

func toChatMessage(message slack.Message, channelId, threadId string) ChatMessage {
	if threadId == "" {
		threadId = message.ThreadTimestamp
	}
	return ChatMessage{
		Text:      message.Text,
		AuthorId:  message.User,
		ChannelId: channelId,
		ThreadId:  threadId,
		Timestamp: message.Timestamp,
		BotId:     message.BotID,
	}
}
