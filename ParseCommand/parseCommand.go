package ParseCommand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"slack-thread-summarizer/Models"
)

type Intent = Models.Intent

const (
	DefaultLimit = 10
	// conversations.history and conversations.replies return at most this many messages
	MaxLimit = 1000

	helpFlag    = "--help"
	versionFlag = "--version"
	limitFlag   = "--limit"

	summarizeWord = "summarize"
	askWord       = "ask"
)

var leadingInteger = regexp.MustCompile(`^\+?\d+`)

// flags in the order they are listed by the help text
var options = []struct {
	flag        string
	description string
}{
	{helpFlag, "Show help"},
	{versionFlag, "Show version"},
	{limitFlag, "Set the limit of messages to summarize"},
}

type Parser struct {
	defaultLimit   int
	triggerLiteral string
	pattern        *regexp.Regexp
}

// New builds a parser for the given default history depth and pattern trigger literal
// (e.g. "!summarize"). A non-positive defaultLimit falls back to DefaultLimit.
func New(defaultLimit int, triggerLiteral string) *Parser {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	defaultLimit = min(defaultLimit, MaxLimit)
	return &Parser{
		defaultLimit:   defaultLimit,
		triggerLiteral: triggerLiteral,
		pattern:        regexp.MustCompile(regexp.QuoteMeta(triggerLiteral) + `\s*(".*")?\s*([0-9]*)`),
	}
}

func (p *Parser) TriggerLiteral() string {
	return p.triggerLiteral
}

func (p *Parser) DefaultLimit() int {
	return p.defaultLimit
}

// ParseMention interprets the text of a mention addressed to the bot, with the mention
// token already removed (see StripMention).
func (p *Parser) ParseMention(text string) Intent {
	switch strings.TrimSpace(text) {
	case helpFlag:
		return Intent{Kind: Models.IntentHelp}
	case versionFlag:
		return Intent{Kind: Models.IntentVersion}
	}

	prompt := text
	limit := p.defaultLimit
	if idx := strings.Index(prompt, limitFlag); idx >= 0 {
		limitArg := prompt[idx+len(limitFlag):]
		// only the first --limit counts
		if next := strings.Index(limitArg, limitFlag); next >= 0 {
			limitArg = limitArg[:next]
		}
		limit = p.parseLimit(limitArg)
		prompt = prompt[:idx]
	}

	working := strings.TrimSpace(prompt)
	switch {
	case strings.HasPrefix(working, summarizeWord):
		return Intent{Kind: Models.IntentSummarize, Question: textAfterFirstWord(prompt), Limit: limit}
	case strings.HasPrefix(working, askWord):
		return Intent{Kind: Models.IntentAsk, Question: textAfterFirstWord(prompt), Limit: limit}
	}

	// an unrecognized mention is a summarize request with the whole text as the question
	return Intent{Kind: Models.IntentSummarize, Question: blankToEmpty(prompt), Limit: limit}
}

// ParsePattern matches the trigger literal anywhere in text, optionally followed by a
// quoted question and a trailing message count. ok is false when the literal is absent.
func (p *Parser) ParsePattern(text string) (intent Intent, ok bool) {
	matches := p.pattern.FindStringSubmatch(text)
	if matches == nil {
		return Intent{}, false
	}

	question := matches[1]
	question = strings.TrimPrefix(question, `"`)
	question = strings.TrimSuffix(question, `"`)

	return Intent{
		Kind:     Models.IntentSummarize,
		Question: blankToEmpty(question),
		Limit:    p.parseLimit(matches[2]),
	}, true
}

func (p *Parser) parseLimit(raw string) int {
	digits := leadingInteger.FindString(strings.TrimSpace(raw))
	if digits == "" {
		return p.defaultLimit
	}
	limit, err := strconv.Atoi(strings.TrimPrefix(digits, "+"))
	if err != nil || limit <= 0 {
		return p.defaultLimit
	}
	return min(limit, MaxLimit)
}

// MentionToken is the literal Slack uses to reference a user inside message text.
func MentionToken(userId string) string {
	return "<@" + userId + ">"
}

// StripMention removes the bot's mention token from the trigger text of a mention event.
func StripMention(text, botUserId string) string {
	if botUserId == "" {
		return text
	}
	mention := MentionToken(botUserId)
	trimmed := strings.TrimLeft(text, " \t\n")
	if strings.HasPrefix(trimmed, mention) {
		return strings.TrimLeft(strings.TrimPrefix(trimmed, mention), " \t\n")
	}
	if strings.Contains(text, mention) {
		return strings.TrimLeft(strings.Replace(text, mention, "", 1), " \t\n")
	}
	return text
}

// Usage is the reply to --help.
func (p *Parser) Usage(botName string) string {
	if botName == "" {
		botName = "Summarizer"
	}

	var b strings.Builder
	b.WriteString("```")
	b.WriteString(fmt.Sprintf("Usage: @%s summarize [question] [options]\n", botName))
	b.WriteString(fmt.Sprintf("       @%s ask <question>\n", botName))
	b.WriteString(fmt.Sprintf("       %s \"[question]\" [count]\n", p.triggerLiteral))
	b.WriteString(fmt.Sprintf(" If no question is provided but 'summarize', the last %d messages will be summarized.\n", p.defaultLimit))
	for i, option := range options {
		b.WriteString(fmt.Sprintf("%s: %s", option.flag, option.description))
		if i < len(options)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```")
	return b.String()
}

// textAfterFirstWord drops the first whitespace-separated token and the single separator after
// it; the rest is returned untouched.
func textAfterFirstWord(prompt string) string {
	trimmed := strings.TrimLeftFunc(prompt, unicode.IsSpace)
	end := strings.IndexFunc(trimmed, unicode.IsSpace)
	if end < 0 {
		return ""
	}
	_, size := utf8.DecodeRuneInString(trimmed[end:])
	return blankToEmpty(trimmed[end+size:])
}

func blankToEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
