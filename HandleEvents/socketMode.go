package HandleEvents

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Acker acknowledges Socket Mode envelopes; *socketmode.Client implements it.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// RunSocketMode consumes the Socket Mode event stream until ctx is cancelled.
func RunSocketMode(ctx context.Context, client *socketmode.Client, dispatcher *Dispatcher) error {
	return ServeSocketEvents(ctx, client.Events, client, dispatcher, client.RunContext)
}

// ServeSocketEvents handles events while run holds the connection open. It returns only after
// the event loop has stopped, so no Dispatch call outlives it.
func ServeSocketEvents(ctx context.Context, events <-chan socketmode.Event, acker Acker, dispatcher *Dispatcher, run func(context.Context) error) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})

	go func() {
		defer close(loopDone)
		for {
			select {
			case <-loopCtx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				HandleSocketEvent(loopCtx, evt, acker, dispatcher)
			}
		}
	}()

	err := run(ctx)
	stopLoop()
	<-loopDone
	return err
}

// HandleSocketEvent acks every envelope that carries a request and dispatches Events API payloads.
func HandleSocketEvent(ctx context.Context, evt socketmode.Event, acker Acker, dispatcher *Dispatcher) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.InfoContext(ctx, "HandleEvents:HandleSocketEvent#Connecting to Slack with Socket Mode")

	case socketmode.EventTypeConnected:
		slog.InfoContext(ctx, "HandleEvents:HandleSocketEvent#Connected to Slack with Socket Mode")

	case socketmode.EventTypeConnectionError:
		slog.WarnContext(ctx, "HandleEvents:HandleSocketEvent#Connection failed", "data", evt.Data)

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if evt.Request != nil {
			acker.Ack(*evt.Request)
		}
		if !ok {
			slog.WarnContext(ctx, "HandleEvents:HandleSocketEvent#Ignored malformed event", "type", evt.Type)
			return
		}
		dispatcher.Dispatch(ctx, eventsAPIEvent)

	default:
		if evt.Request != nil {
			acker.Ack(*evt.Request)
		}
		slog.DebugContext(ctx, "HandleEvents:HandleSocketEvent#Unsupported event type", "type", evt.Type)
	}
}
