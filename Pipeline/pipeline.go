package Pipeline

import (
	"context"
	"log/slog"
	"time"

	"slack-thread-summarizer/BuildPrompt"
	"slack-thread-summarizer/Config"
	"slack-thread-summarizer/FetchRemoteContent"
	"slack-thread-summarizer/GetConversations"
	"slack-thread-summarizer/Logger"
	"slack-thread-summarizer/Models"
	"slack-thread-summarizer/NormalizeMessages"
	"slack-thread-summarizer/ParseCommand"
	"slack-thread-summarizer/PublishToSlack"
	"slack-thread-summarizer/ResolveUsers"
	"slack-thread-summarizer/SummarizeConversations"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Trigger = Models.Trigger
type Intent = Models.Intent

const NoMessagesText = "No messages found to summarize."

// SlackApi is everything the pipeline needs from *slack.Client.
type SlackApi interface {
	GetConversations.ConversationsApi
	ResolveUsers.UsersApi
	PublishToSlack.MessagePoster
}

// Identity is the bot's own account as reported by auth.test.
type Identity struct {
	UserId string
	BotId  string
	Name   string
}

type Pipeline struct {
	api     SlackApi
	invoker *SummarizeConversations.Invoker
	fetcher FetchRemoteContent.Fetcher
	parser  *ParseCommand.Parser
	self    Identity

	version           string
	language          string
	lookupConcurrency int
	maxFetches        int
	fetchBudget       time.Duration
}

func New(api SlackApi, invoker *SummarizeConversations.Invoker, fetcher FetchRemoteContent.Fetcher, self Identity, cfg *Config.Config) *Pipeline {
	return &Pipeline{
		api:               api,
		invoker:           invoker,
		fetcher:           fetcher,
		parser:            ParseCommand.New(cfg.Summary.DefaultLimit, cfg.Summary.TriggerLiteral),
		self:              self,
		version:           cfg.Version,
		language:          cfg.Summary.Language,
		lookupConcurrency: cfg.Summary.LookupConcurrency,
		maxFetches:        cfg.Remote.MaxFetches,
		fetchBudget:       time.Duration(cfg.Remote.BudgetSeconds) * time.Second,
	}
}

func (p *Pipeline) Parser() *ParseCommand.Parser {
	return p.parser
}

func (p *Pipeline) Self() Identity {
	return p.self
}

// HandleMention runs one mention trigger to completion. The handler is detached from the
// caller's cancellation.
func (p *Pipeline) HandleMention(ctx context.Context, trigger Trigger) {
	ctx = p.startTrigger(ctx, trigger)

	text := ParseCommand.StripMention(trigger.Text, p.self.UserId)
	intent := p.parser.ParseMention(text)

	p.run(ctx, trigger, intent)
}

// HandlePattern runs one trigger-literal message to completion. Messages without the literal
// are ignored.
func (p *Pipeline) HandlePattern(ctx context.Context, trigger Trigger) {
	intent, ok := p.parser.ParsePattern(trigger.Text)
	if !ok {
		return
	}

	ctx = p.startTrigger(ctx, trigger)
	p.run(ctx, trigger, intent)
}

func (p *Pipeline) startTrigger(ctx context.Context, trigger Trigger) context.Context {
	ctx = context.WithoutCancel(ctx)

	return Logger.WithLogFields(ctx, Logger.LogFields{
		TriggerID:   uuid.NewString(),
		TriggerKind: string(trigger.Kind),
		ChannelID:   trigger.ChannelId,
		ThreadID:    trigger.ThreadId,
		Component:   "Pipeline",
	})
}

func (p *Pipeline) run(ctx context.Context, trigger Trigger, intent Intent) {
	ctx = Logger.WithLogFields(ctx, Logger.LogFields{Intent: intent.Kind.String()})

	sc := Logger.StartSpan(ctx, "pipeline."+intent.Kind.String(),
		attribute.String("trigger.kind", string(trigger.Kind)),
		attribute.String("slack.channel_id", trigger.ChannelId),
		attribute.Int("summary.limit", intent.Limit),
		attribute.Bool("summary.has_question", intent.HasQuestion()),
	)
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "Pipeline:run#Handling trigger",
		"limit", intent.Limit,
		"has_question", intent.HasQuestion())

	switch intent.Kind {
	case Models.IntentHelp:
		p.publish(ctx, trigger, p.parser.Usage(p.self.Name))
	case Models.IntentVersion:
		p.publish(ctx, trigger, p.version)
	case Models.IntentAsk:
		p.ask(ctx, trigger, intent)
	default:
		p.summarize(ctx, trigger, intent)
	}
}

func (p *Pipeline) summarize(ctx context.Context, trigger Trigger, intent Intent) {
	fetch := Logger.StartSpan(ctx, "pipeline.fetch_messages")
	messages := GetConversations.FetchRecentMessages(fetch.Context(), p.api, trigger.ChannelId, intent.Limit, trigger.ThreadId)
	fetch.SetAttributes(attribute.Int("messages.count", len(messages)))
	fetch.End()

	if len(messages) == 0 {
		slog.InfoContext(ctx, "Pipeline:summarize#No messages to summarize")
		p.publish(ctx, trigger, NoMessagesText)
		return
	}

	resolve := Logger.StartSpan(ctx, "pipeline.resolve_users")
	identities := ResolveUsers.Resolve(resolve.Context(), p.api, NormalizeMessages.ReferencedUserIds(messages), p.lookupConcurrency)
	resolve.SetAttributes(attribute.Int("users.count", len(identities)))
	resolve.End()

	normalize := Logger.StartSpan(ctx, "pipeline.normalize_messages")
	conversation := NormalizeMessages.Normalize(normalize.Context(), messages, identities, NormalizeMessages.Options{
		SelfUserId:      p.self.UserId,
		SelfBotId:       p.self.BotId,
		CommandPrefixes: p.commandPrefixes(),
		Fetcher:         p.fetcher,
		MaxFetches:      p.maxFetches,
		FetchBudget:     p.fetchBudget,
	})
	normalize.SetAttributes(attribute.Int("context.lines", len(conversation)))
	normalize.End()

	prompt := BuildPrompt.Summarize(conversation, intent.Question, p.language)
	p.complete(ctx, trigger, prompt)
}

func (p *Pipeline) ask(ctx context.Context, trigger Trigger, intent Intent) {
	if !intent.HasQuestion() {
		p.publish(ctx, trigger, p.parser.Usage(p.self.Name))
		return
	}
	p.complete(ctx, trigger, BuildPrompt.Ask(intent.Question, p.language))
}

func (p *Pipeline) complete(ctx context.Context, trigger Trigger, prompt []Models.PromptMessage) {
	invoke := Logger.StartSpan(ctx, "pipeline.invoke_completion", attribute.Int("prompt.messages", len(prompt)))
	answer := p.invoker.Invoke(invoke.Context(), prompt)
	if answer == SummarizeConversations.FailureText {
		invoke.Fail("completion failed")
	}
	invoke.End()

	p.publish(ctx, trigger, answer)
}

func (p *Pipeline) publish(ctx context.Context, trigger Trigger, text string) {
	sc := Logger.StartSpan(ctx, "pipeline.publish")
	defer sc.End()

	if !PublishToSlack.Publish(sc.Context(), p.api, trigger.ChannelId, text, trigger.ThreadId) {
		sc.Fail("post message failed")
	}
}

func (p *Pipeline) commandPrefixes() []string {
	prefixes := []string{p.parser.TriggerLiteral()}
	if p.self.UserId != "" {
		prefixes = append(prefixes, ParseCommand.MentionToken(p.self.UserId))
	}
	return prefixes
}
