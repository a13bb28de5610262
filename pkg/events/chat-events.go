package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/triage/pkg/checklist"
	"github.com/go-go-golems/triage/pkg/conversation"
	"github.com/go-go-golems/triage/pkg/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeTimelineUpdated   EventType = "timeline-updated"
	EventTypeChecklistUpdated  EventType = "checklist-updated"
	EventTypeStatusChanged     EventType = "status-changed"
	EventTypeSessionsRefreshed EventType = "sessions-refreshed"
	EventTypeError             EventType = "error"
)

// TopicConversation is the topic the conversation core publishes on.
const TopicConversation = "conversation"

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventMetadata struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
}

func NewEventMetadata(sessionID string) EventMetadata {
	return EventMetadata{
		ID:        uuid.New(),
		SessionID: sessionID,
		Time:      time.Now(),
	}
}

func (m EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", m.ID.String())
	if m.SessionID != "" {
		e.Str("session_id", m.SessionID)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// set when the event was decoded from JSON
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

// EventTimelineUpdated carries the full timeline after it was replaced or appended to.
type EventTimelineUpdated struct {
	EventImpl
	Messages []conversation.Message `json:"messages"`
}

func NewTimelineUpdatedEvent(metadata EventMetadata, messages []conversation.Message) *EventTimelineUpdated {
	return &EventTimelineUpdated{
		EventImpl: EventImpl{Type_: EventTypeTimelineUpdated, Metadata_: metadata},
		Messages:  messages,
	}
}

var _ Event = &EventTimelineUpdated{}

type EventChecklistUpdated struct {
	EventImpl
	Items    []checklist.Item `json:"items"`
	Progress int              `json:"progress"`
}

func NewChecklistUpdatedEvent(metadata EventMetadata, items []checklist.Item, progress int) *EventChecklistUpdated {
	return &EventChecklistUpdated{
		EventImpl: EventImpl{Type_: EventTypeChecklistUpdated, Metadata_: metadata},
		Items:     items,
		Progress:  progress,
	}
}

var _ Event = &EventChecklistUpdated{}

type EventStatusChanged struct {
	EventImpl
	Status   string `json:"status"`
	Previous string `json:"previous"`
}

func NewStatusChangedEvent(metadata EventMetadata, previous, status string) *EventStatusChanged {
	return &EventStatusChanged{
		EventImpl: EventImpl{Type_: EventTypeStatusChanged, Metadata_: metadata},
		Status:    status,
		Previous:  previous,
	}
}

var _ Event = &EventStatusChanged{}

type EventSessionsRefreshed struct {
	EventImpl
	Sessions []session.Session `json:"sessions"`
}

func NewSessionsRefreshedEvent(metadata EventMetadata, sessions []session.Session) *EventSessionsRefreshed {
	return &EventSessionsRefreshed{
		EventImpl: EventImpl{Type_: EventTypeSessionsRefreshed, Metadata_: metadata},
		Sessions:  sessions,
	}
}

var _ Event = &EventSessionsRefreshed{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
	// UserMessage is the text a chat window shows for the failure.
	UserMessage string `json:"user_message,omitempty"`
}

func NewErrorEvent(metadata EventMetadata, err error, userMessage string) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
		UserMessage: userMessage,
	}
}

var _ Event = &EventError{}

// NewEventFromJSON decodes a published payload into its typed event.
func NewEventFromJSON(b []byte) (Event, error) {
	var hdr EventImpl
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	var ev interface {
		Event
		SetPayload([]byte)
	}
	switch hdr.Type_ {
	case EventTypeTimelineUpdated:
		ev = &EventTimelineUpdated{}
	case EventTypeChecklistUpdated:
		ev = &EventChecklistUpdated{}
	case EventTypeStatusChanged:
		ev = &EventStatusChanged{}
	case EventTypeSessionsRefreshed:
		ev = &EventSessionsRefreshed{}
	case EventTypeError:
		ev = &EventError{}
	default:
		return nil, fmt.Errorf("unknown event type: %q", hdr.Type_)
	}

	if err := json.Unmarshal(b, ev); err != nil {
		return nil, err
	}
	ev.SetPayload(b)
	return ev, nil
}
