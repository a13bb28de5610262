package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// ConversationEventHandler receives decoded conversation events.
type ConversationEventHandler interface {
	HandleTimelineUpdated(ctx context.Context, e *EventTimelineUpdated) error
	HandleChecklistUpdated(ctx context.Context, e *EventChecklistUpdated) error
	HandleStatusChanged(ctx context.Context, e *EventStatusChanged) error
	HandleSessionsRefreshed(ctx context.Context, e *EventSessionsRefreshed) error
	HandleError(ctx context.Context, e *EventError) error
}

type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
	dumpOut    io.Writer
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = NewWatermillLogger(log.Logger)
		}
	}
}

// WithDumpWriter sets where DumpRawEvents prints. Defaults to stdout.
func WithDumpWriter(w io.Writer) EventRouterOption {
	return func(r *EventRouter) {
		r.dumpOut = w
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger:  watermill.NopLogger{},
		dumpOut: os.Stdout,
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub")
	}

	log.Debug().Msg("closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close router")
	}

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// AddConversationHandler decodes every message on topic and dispatches it to handler.
func (e *EventRouter) AddConversationHandler(name string, topic string, handler ConversationEventHandler) {
	e.AddHandler(name, topic, NewDispatchHandler(handler))
}

// NewDispatchHandler builds a watermill handler that parses conversation events and
// calls the matching method of handler. Undecodable payloads are logged and dropped.
func NewDispatchHandler(handler ConversationEventHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ev, err := NewEventFromJSON(msg.Payload)
		if err != nil {
			log.Error().Err(err).
				Str("message_id", msg.UUID).
				Str("payload", string(msg.Payload)).
				Msg("failed to parse conversation event")
			return nil
		}

		ctx := msg.Context()
		switch ev_ := ev.(type) {
		case *EventTimelineUpdated:
			err = handler.HandleTimelineUpdated(ctx, ev_)
		case *EventChecklistUpdated:
			err = handler.HandleChecklistUpdated(ctx, ev_)
		case *EventStatusChanged:
			err = handler.HandleStatusChanged(ctx, ev_)
		case *EventSessionsRefreshed:
			err = handler.HandleSessionsRefreshed(ctx, ev_)
		case *EventError:
			err = handler.HandleError(ctx, ev_)
		}
		if err != nil {
			log.Error().Err(err).
				Str("message_id", msg.UUID).
				Str("event_type", string(ev.Type())).
				Msg("error processing conversation event")
			return err
		}
		return nil
	}
}

// DumpRawEvents prints every event as indented JSON. Without verbose, the metadata
// block is collapsed to the event id.
func (e *EventRouter) DumpRawEvents(msg *message.Message) error {
	defer msg.Ack()

	var s map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		return err
	}
	if !e.verbose {
		if meta, ok := s["meta"].(map[string]interface{}); ok {
			s["id"] = meta["id"]
		}
		delete(s, "meta")
	}
	s_, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.dumpOut, string(s_))
	return err
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
