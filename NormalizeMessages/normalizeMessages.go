package NormalizeMessages

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"slack-thread-summarizer/FetchRemoteContent"
	"slack-thread-summarizer/Logger"
	"slack-thread-summarizer/Models"
	"slack-thread-summarizer/ResolveUsers"
)

type ChatMessage = Models.ChatMessage

// the first http(s) link; Slack wraps links as <url> or <url|label>
var urlPattern = regexp.MustCompile(`https?://[^\s<>|]+`)

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)>`)

type Options struct {
	SelfUserId string
	SelfBotId  string
	// messages starting with any of these are commands, not conversation
	CommandPrefixes []string
	// nil disables remote content enrichment
	Fetcher FetchRemoteContent.Fetcher
	// at most this many links are fetched per call; 0 means no cap
	MaxFetches int
	// total time allowed for all fetches of one call; 0 means no cap
	FetchBudget time.Duration
}

// Normalize turns raw history into "<speaker>: <text>" lines in arrival order. Commands and
// the bot's own messages are dropped, user mentions become display names and the first link
// of each message is expanded with the fetched page text. The input slice is never modified.
func Normalize(ctx context.Context, messages []ChatMessage, identities map[string]string, opts Options) []string {
	conversation := make([]string, 0, len(messages))
	enricher := newEnricher(ctx, opts)
	defer enricher.close()

	for _, message := range messages {
		if isCommand(message.Text, opts.CommandPrefixes) {
			continue
		}
		if isSelf(message, opts) {
			continue
		}

		text := ReplaceMentions(message.Text, identities)
		text = enricher.appendRemoteContext(ctx, text)

		conversation = append(conversation, fmt.Sprintf("%s: %s", speakerName(message.AuthorId, identities), text))
	}

	return conversation
}

// ReferencedUserIds lists the authors of messages followed by every user mentioned in their
// text, in first-seen order and without duplicates.
func ReferencedUserIds(messages []ChatMessage) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, message := range messages {
		add(message.AuthorId)
	}
	for _, message := range messages {
		for _, match := range mentionPattern.FindAllStringSubmatch(message.Text, -1) {
			add(match[1])
		}
	}
	return ids
}

// ReplaceMentions substitutes every <@ID> token of a resolved id with its display name.
func ReplaceMentions(text string, identities map[string]string) string {
	for userId, displayName := range identities {
		text = strings.ReplaceAll(text, "<@"+userId+">", displayName)
	}
	return text
}

// FirstURL returns the first http(s) link in text, or "".
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

// enricher spends one request's fetch budget across its messages.
type enricher struct {
	fetcher   FetchRemoteContent.Fetcher
	fetchCtx  context.Context
	cancel    context.CancelFunc
	remaining int
	unlimited bool
	exhausted bool
}

func newEnricher(ctx context.Context, opts Options) *enricher {
	e := &enricher{
		fetcher:   opts.Fetcher,
		fetchCtx:  ctx,
		cancel:    func() {},
		remaining: opts.MaxFetches,
		unlimited: opts.MaxFetches <= 0,
	}
	if opts.Fetcher != nil && opts.FetchBudget > 0 {
		e.fetchCtx, e.cancel = context.WithTimeout(ctx, opts.FetchBudget)
	}
	return e
}

func (e *enricher) close() {
	e.cancel()
}

func (e *enricher) appendRemoteContext(ctx context.Context, text string) string {
	if e.fetcher == nil {
		return text
	}
	link := FirstURL(text)
	if link == "" {
		return text
	}
	if (!e.unlimited && e.remaining <= 0) || e.fetchCtx.Err() != nil {
		if !e.exhausted {
			e.exhausted = true
			slog.InfoContext(ctx, "NormalizeMessages:appendRemoteContext#Fetch budget spent, skipping remaining links")
		}
		return text
	}
	e.remaining--

	content, fetchError := e.fetcher.Fetch(e.fetchCtx, link)
	if fetchError != nil {
		slog.WarnContext(ctx, "NormalizeMessages:appendRemoteContext#Error while fetching the remote content",
			"url", Logger.Truncate(link, 200),
			"error", fetchError)
		return text
	}

	return text + fmt.Sprintf("\nADDITIONAL_REMOTE_CONTEXT_FROM %s:\n%s\n", link, content)
}

func isCommand(text string, prefixes []string) bool {
	trimmed := strings.TrimLeft(text, " \t\n")
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func isSelf(message ChatMessage, opts Options) bool {
	if opts.SelfUserId != "" && message.AuthorId == opts.SelfUserId {
		return true
	}
	return opts.SelfBotId != "" && message.BotId == opts.SelfBotId
}

func speakerName(authorId string, identities map[string]string) string {
	if name, ok := identities[authorId]; ok && name != "" {
		return name
	}
	return ResolveUsers.UnknownName
}
