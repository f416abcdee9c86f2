package PublishToSlack

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
)

type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Publish posts text to the channel, inside the thread when threadId is set. Link and media
// previews are disabled. Delivery failures are logged and otherwise ignored.
func Publish(ctx context.Context, api MessagePoster, channelId string, text string, threadId string) bool {
	_, _, postMessageError := api.PostMessageContext(
		ctx,
		channelId,
		slack.MsgOptionText(text, false),
		// empty ThreadTimestamp posts to the channel root
		slack.MsgOptionPostMessageParameters(slack.PostMessageParameters{
			ThreadTimestamp: threadId,
		}),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	)

	if postMessageError != nil {
		slog.ErrorContext(ctx, "PublishToSlack:Publish#Error posting message",
			"channel_id", channelId,
			"thread_id", threadId,
			"error", postMessageError)
		return false
	}

	return true
}
