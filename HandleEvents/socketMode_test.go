package HandleEvents_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"slack-thread-summarizer/HandleEvents"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

var _ = Describe("HandleSocketEvent", func() {
	var (
		ctx        context.Context
		handler    *recordingHandler
		acker      *fakeAcker
		dispatcher *HandleEvents.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = &recordingHandler{}
		acker = &fakeAcker{}
		dispatcher = HandleEvents.NewDispatcher(handler, nil, "UBOT", "!summarize")
	})

	It("acks and dispatches Events API envelopes", func() {
		HandleEvents.HandleSocketEvent(ctx, socketmode.Event{
			Type:    socketmode.EventTypeEventsAPI,
			Data:    callback("Ev1", &slackevents.AppMentionEvent{User: "U1", Text: "<@UBOT> --help", Channel: "C1"}),
			Request: &socketmode.Request{EnvelopeID: "env-1"},
		}, acker, dispatcher)
		dispatcher.Wait()

		Expect(acker.acked).To(Equal([]string{"env-1"}))
		Expect(handler.mentions).To(HaveLen(1))
	})

	It("acks malformed envelopes without dispatching", func() {
		HandleEvents.HandleSocketEvent(ctx, socketmode.Event{
			Type:    socketmode.EventTypeEventsAPI,
			Data:    "garbage",
			Request: &socketmode.Request{EnvelopeID: "env-2"},
		}, acker, dispatcher)
		dispatcher.Wait()

		Expect(acker.acked).To(Equal([]string{"env-2"}))
		Expect(handler.mentions).To(BeEmpty())
	})

	It("acks other envelopes that carry a request", func() {
		HandleEvents.HandleSocketEvent(ctx, socketmode.Event{
			Type:    socketmode.EventTypeSlashCommand,
			Request: &socketmode.Request{EnvelopeID: "env-3"},
		}, acker, dispatcher)

		Expect(acker.acked).To(Equal([]string{"env-3"}))
	})

	It("ignores connection lifecycle events", func() {
		HandleEvents.HandleSocketEvent(ctx, socketmode.Event{Type: socketmode.EventTypeConnected}, acker, dispatcher)

		Expect(acker.acked).To(BeEmpty())
	})
})

var _ = Describe("ServeSocketEvents", func() {
	It("returns only after every received event has been dispatched", func() {
		handler := &recordingHandler{}
		acker := &fakeAcker{}
		dispatcher := HandleEvents.NewDispatcher(handler, nil, "UBOT", "!summarize")
		events := make(chan socketmode.Event)

		run := func(ctx context.Context) error {
			for i, id := range []string{"Ev1", "Ev2", "Ev3"} {
				events <- socketmode.Event{
					Type:    socketmode.EventTypeEventsAPI,
					Data:    callback(id, &slackevents.AppMentionEvent{User: "U1", Text: "<@UBOT>", Channel: "C1"}),
					Request: &socketmode.Request{EnvelopeID: fmt.Sprintf("env-%d", i)},
				}
			}
			return nil
		}

		Expect(HandleEvents.ServeSocketEvents(context.Background(), events, acker, dispatcher, run)).To(Succeed())
		dispatcher.Wait()

		Expect(acker.acked).To(Equal([]string{"env-0", "env-1", "env-2"}))
		Expect(handler.mentions).To(HaveLen(3))
	})

	It("stops the loop when the connection ends with an error", func() {
		dispatcher := HandleEvents.NewDispatcher(&recordingHandler{}, nil, "UBOT", "!summarize")
		connectionLost := errors.New("connection lost")

		err := HandleEvents.ServeSocketEvents(context.Background(), make(chan socketmode.Event), &fakeAcker{}, dispatcher,
			func(context.Context) error { return connectionLost })

		Expect(err).To(MatchError(connectionLost))
	})
})
