package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	MetadataSequenceNumber = "sequence_number"
	MetadataEventType      = "event_type"
	MetadataSessionID      = "session_id"
)

// PublisherManager distributes events to a set of Publishers.
// A publisher is "subscribed" to a topic; Publish sends every event to every
// publisher on the topic it was subscribed with.
//
// The manager stamps each outgoing message with a sequence number, in the order
// Publish handles them, so subscribers can detect reordering.
type PublisherManager struct {
	Publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		Publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, sub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Publishers[topic] = append(s.Publishers[topic], sub)
}

// Publish serializes the event to JSON and hands it to every subscribed publisher.
// A failing publisher is logged and skipped.
func (s *PublisherManager) Publish(ev Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrapf(err, "could not marshal %s event", ev.Type())
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set(MetadataSequenceNumber, fmt.Sprintf("%d", s.sequenceNumber))
	msg.Metadata.Set(MetadataEventType, string(ev.Type()))
	if sid := ev.Metadata().SessionID; sid != "" {
		msg.Metadata.Set(MetadataSessionID, sid)
	}
	s.sequenceNumber++

	for topic, subs := range s.Publishers {
		for _, sub := range subs {
			if err := sub.Publish(topic, msg.Copy()); err != nil {
				log.Warn().Err(err).Str("topic", topic).Str("event_type", string(ev.Type())).Msg("failed to publish")
			}
		}
	}

	return nil
}

func (s *PublisherManager) PublishBlind(ev Event) {
	if err := s.Publish(ev); err != nil {
		log.Warn().Err(err).Msg("failed to publish")
	}
}
