package checklist

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Marker is the open checkbox glyph the assistant prefixes actionable steps with.
const Marker = "□"

var itemRegexp = regexp.MustCompile(`(?m)^[ \t]*` + Marker + `[ \t]*(.*?)[ \t\r]*$`)

// Item is one actionable step parsed out of an assistant message.
type Item struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type IDFunc func() string

// Extractor turns assistant text into checklist items.
type Extractor struct {
	newID IDFunc
}

type ExtractorOption func(*Extractor)

// WithIDFunc replaces the id generator, mostly useful for deterministic tests.
func WithIDFunc(f IDFunc) ExtractorOption {
	return func(e *Extractor) {
		e.newID = f
	}
}

func NewExtractor(options ...ExtractorOption) *Extractor {
	ret := &Extractor{
		newID: uuid.NewString,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Extract returns one item per line starting with Marker, top to bottom.
// Item texts depend only on text; ids are fresh on every call.
func (e *Extractor) Extract(text string) []Item {
	matches := itemRegexp.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ret := make([]Item, 0, len(matches))
	for _, m := range matches {
		label := strings.TrimSpace(m[1])
		if label == "" {
			continue
		}
		ret = append(ret, Item{
			ID:   e.newID(),
			Text: label,
		})
	}
	return ret
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor over text.
func Extract(text string) []Item {
	return defaultExtractor.Extract(text)
}

// Checklist holds the items derived from the latest assistant message.
// Completion state is local to the client.
type Checklist struct {
	mu    sync.RWMutex
	items []Item
}

func New(items ...Item) *Checklist {
	ret := &Checklist{}
	ret.Replace(items)
	return ret
}

func (c *Checklist) Replace(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]Item(nil), items...)
}

func (c *Checklist) Clear() {
	c.Replace(nil)
}

func (c *Checklist) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Item(nil), c.items...)
}

func (c *Checklist) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Toggle flips the completion state of the item with the given id.
func (c *Checklist) Toggle(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Completed = !c.items[i].Completed
			return true
		}
	}
	return false
}

// Progress is the rounded percentage of completed items, 0 for an empty list.
func (c *Checklist) Progress() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) == 0 {
		return 0
	}
	done := 0
	for _, item := range c.items {
		if item.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / float64(len(c.items))))
}
