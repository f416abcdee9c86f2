package HandleEvents

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"slack-thread-summarizer/Models"
	"slack-thread-summarizer/ParseCommand"

	"github.com/slack-go/slack/slackevents"
)

type Trigger = Models.Trigger

// TriggerHandler runs the pipeline for one trigger.
type TriggerHandler interface {
	HandleMention(ctx context.Context, trigger Trigger)
	HandlePattern(ctx context.Context, trigger Trigger)
}

// Dispatcher turns Events API callbacks into triggers and runs each one in its own goroutine.
type Dispatcher struct {
	handler        TriggerHandler
	dedup          Deduper
	botUserId      string
	triggerLiteral string

	inFlight sync.WaitGroup
}

func NewDispatcher(handler TriggerHandler, dedup Deduper, botUserId string, triggerLiteral string) *Dispatcher {
	if dedup == nil {
		dedup = NoopDeduper{}
	}
	return &Dispatcher{
		handler:        handler,
		dedup:          dedup,
		botUserId:      botUserId,
		triggerLiteral: triggerLiteral,
	}
}

// Dispatch starts the pipeline for a supported callback and reports whether it did. It never
// blocks on the pipeline itself.
func (d *Dispatcher) Dispatch(ctx context.Context, event slackevents.EventsAPIEvent) bool {
	if event.Type != slackevents.CallbackEvent {
		return false
	}

	var eventId string
	if callback, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok {
		eventId = callback.EventID
	}

	var (
		trigger Trigger
		run     func(context.Context, Trigger)
	)

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" {
			return false
		}
		trigger = Trigger{
			Kind:      Models.TriggerMention,
			Text:      ev.Text,
			ChannelId: ev.Channel,
			ThreadId:  ev.ThreadTimeStamp,
			UserId:    ev.User,
			EventId:   eventId,
		}
		run = d.handler.HandleMention

	case *slackevents.MessageEvent:
		if !d.isPatternMessage(ev) {
			return false
		}
		trigger = Trigger{
			Kind:      Models.TriggerPattern,
			Text:      ev.Text,
			ChannelId: ev.Channel,
			ThreadId:  ev.ThreadTimeStamp,
			UserId:    ev.User,
			EventId:   eventId,
		}
		run = d.handler.HandlePattern

	default:
		return false
	}

	if !d.dedup.Claim(ctx, eventId) {
		slog.InfoContext(ctx, "HandleEvents:Dispatch#Skipping redelivered event", "event_id", eventId)
		return false
	}

	// the pipeline outlives the request or envelope that delivered it
	detached := context.WithoutCancel(ctx)
	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		run(detached, trigger)
	}()
	return true
}

// Wait blocks until every dispatched trigger has finished.
func (d *Dispatcher) Wait() {
	d.inFlight.Wait()
}

func (d *Dispatcher) isPatternMessage(ev *slackevents.MessageEvent) bool {
	// bot posts, edits, joins and other subtypes never trigger
	if ev.BotID != "" || ev.SubType != "" || ev.User == "" {
		return false
	}
	if d.botUserId != "" && ev.User == d.botUserId {
		return false
	}
	if !strings.Contains(ev.Text, d.triggerLiteral) {
		return false
	}
	// the app_mention event for the same message handles it
	if d.botUserId != "" && strings.Contains(ev.Text, ParseCommand.MentionToken(d.botUserId)) {
		return false
	}
	return true
}
