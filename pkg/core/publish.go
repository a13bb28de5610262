package core

import (
	"github.com/go-go-golems/triage/pkg/events"
)

func (c *Core) publish(ev events.Event) {
	if c.publisher == nil {
		return
	}
	c.publisher.PublishBlind(ev)
}

func (c *Core) metadata() events.EventMetadata {
	return events.NewEventMetadata(c.activeSession())
}

// publishTimeline announces the current timeline and the checklist derived from it.
func (c *Core) publishTimeline() {
	if c.publisher == nil {
		return
	}
	s := c.Snapshot()
	md := events.NewEventMetadata(s.ActiveSessionID)
	c.publish(events.NewTimelineUpdatedEvent(md, s.Timeline))
	c.publish(events.NewChecklistUpdatedEvent(md, s.Checklist, s.Progress))
}

func (c *Core) publishChecklist() {
	if c.publisher == nil {
		return
	}
	s := c.Snapshot()
	c.publish(events.NewChecklistUpdatedEvent(events.NewEventMetadata(s.ActiveSessionID), s.Checklist, s.Progress))
}

func (c *Core) publishStatus(previous, status Status) {
	c.publish(events.NewStatusChangedEvent(c.metadata(), string(previous), string(status)))
}

func (c *Core) publishError(err error) {
	c.publish(events.NewErrorEvent(c.metadata(), err, UserMessage(err)))
}
