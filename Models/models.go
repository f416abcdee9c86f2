package Models

// ChatMessage is a single Slack message as fetched from history or thread replies.
// It is treated as immutable: the normalizer works on copies.
type ChatMessage struct {
	Text      string
	AuthorId  string
	ChannelId string
	ThreadId  string
	Timestamp string
	// set when the message was posted by a bot integration
	BotId string
}

type TriggerKind string

const (
	TriggerMention TriggerKind = "mention"
	TriggerPattern TriggerKind = "pattern"
)

// Trigger is the inbound event that starts one pipeline run.
type Trigger struct {
	Kind      TriggerKind
	Text      string
	ChannelId string
	ThreadId  string
	UserId    string
	EventId   string
}

type IntentKind int

const (
	IntentSummarize IntentKind = iota
	IntentAsk
	IntentHelp
	IntentVersion
)

func (k IntentKind) String() string {
	switch k {
	case IntentSummarize:
		return "summarize"
	case IntentAsk:
		return "ask"
	case IntentHelp:
		return "help"
	case IntentVersion:
		return "version"
	}
	return "unknown"
}

// Intent is the parsed user request. An empty Question means no question was supplied.
// Limit is only meaningful for IntentSummarize.
type Intent struct {
	Kind     IntentKind
	Question string
	Limit    int
}

func (i Intent) HasQuestion() bool {
	return i.Question != ""
}

// PromptRole is closed: only the two constants below are valid.
type PromptRole string

const (
	RoleSystem PromptRole = "system"
	RoleUser   PromptRole = "user"
)

type PromptMessage struct {
	Role         PromptRole
	Content      string
	SpeakerLabel string
}

func SystemMessage(content string) PromptMessage {
	return PromptMessage{Role: RoleSystem, Content: content}
}

func UserMessage(content, speakerLabel string) PromptMessage {
	return PromptMessage{Role: RoleUser, Content: content, SpeakerLabel: speakerLabel}
}
