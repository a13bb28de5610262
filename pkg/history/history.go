package history

import (
	"bytes"
	"encoding/json"

	"github.com/go-go-golems/triage/pkg/conversation"
	"github.com/pkg/errors"
)

// Form is the shape the backend used for a session history payload.
type Form int

const (
	FormEmpty Form = iota
	// FormExchange pairs one user line with one assistant line per record.
	FormExchange
	// FormFlat is a plain list of role-tagged messages.
	FormFlat
)

func (f Form) String() string {
	switch f {
	case FormEmpty:
		return "empty"
	case FormExchange:
		return "exchange"
	case FormFlat:
		return "flat"
	}
	return "unknown"
}

// Exchange is one user/assistant pair. Either side may be missing for a trailing
// incomplete exchange.
type Exchange struct {
	User      *string
	Assistant *string
	Timestamp string
}

// Record is one role-tagged message of a flat history.
type Record struct {
	Role      conversation.Role
	Content   string
	Timestamp string
}

// Raw is a session history as received from the backend. The shape is resolved
// once, when decoding; only the slice matching Form is populated.
type Raw struct {
	Form      Form
	Exchanges []Exchange
	Records   []Record
}

func NewExchangeRaw(exchanges ...Exchange) Raw {
	if len(exchanges) == 0 {
		return Raw{Form: FormEmpty}
	}
	return Raw{Form: FormExchange, Exchanges: exchanges}
}

func NewFlatRaw(records ...Record) Raw {
	if len(records) == 0 {
		return Raw{Form: FormEmpty}
	}
	return Raw{Form: FormFlat, Records: records}
}

// Len is the number of raw records, regardless of form.
func (r Raw) Len() int {
	switch r.Form {
	case FormExchange:
		return len(r.Exchanges)
	case FormFlat:
		return len(r.Records)
	case FormEmpty:
		return 0
	}
	return 0
}

// Normalize converts raw into a timeline starting with system.
func Normalize(system conversation.Message, raw Raw) conversation.Timeline {
	ret := conversation.NewTimeline(system)

	switch raw.Form {
	case FormExchange:
		for _, ex := range raw.Exchanges {
			if present(ex.User) {
				ret = append(ret, conversation.NewMessage(conversation.RoleUser, *ex.User,
					conversation.WithTimestamp(ex.Timestamp)))
			}
			if present(ex.Assistant) {
				ret = append(ret, conversation.NewMessage(conversation.RoleAssistant, *ex.Assistant,
					conversation.WithTimestamp(ex.Timestamp)))
			}
		}
	case FormFlat:
		for _, rec := range raw.Records {
			ret = append(ret, conversation.NewMessage(rec.Role, rec.Content,
				conversation.WithTimestamp(rec.Timestamp)))
		}
	case FormEmpty:
	}

	return ret
}

func present(s *string) bool {
	return s != nil && *s != ""
}

type exchangeJSON struct {
	User      *string         `json:"user"`
	Assistant *string         `json:"assistant,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type recordJSON struct {
	Role      conversation.Role `json:"role"`
	Content   *string           `json:"content"`
	Timestamp json.RawMessage   `json:"timestamp,omitempty"`
}

// Decode parses a conversation_history array.
func Decode(data []byte) (Raw, error) {
	var r Raw
	if err := json.Unmarshal(data, &r); err != nil {
		return Raw{}, err
	}
	return r, nil
}

// UnmarshalJSON detects the form from the first record: a record carrying a
// "user" key (even empty or null) makes the whole sequence an exchange history.
func (r *Raw) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Raw{Form: FormEmpty}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return errors.Wrap(err, "conversation history is not an array")
	}
	if len(items) == 0 {
		*r = Raw{Form: FormEmpty}
		return nil
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(items[0], &first); err != nil {
		return errors.Wrap(err, "conversation history record is not an object")
	}

	if _, ok := first["user"]; ok {
		exchanges := make([]Exchange, 0, len(items))
		for i, item := range items {
			var ej exchangeJSON
			if err := json.Unmarshal(item, &ej); err != nil {
				return errors.Wrapf(err, "invalid exchange record %d", i)
			}
			ts, err := timestampString(ej.Timestamp)
			if err != nil {
				return errors.Wrapf(err, "invalid timestamp in exchange record %d", i)
			}
			exchanges = append(exchanges, Exchange{
				User:      ej.User,
				Assistant: ej.Assistant,
				Timestamp: ts,
			})
		}
		*r = Raw{Form: FormExchange, Exchanges: exchanges}
		return nil
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		var rj recordJSON
		if err := json.Unmarshal(item, &rj); err != nil {
			return errors.Wrapf(err, "invalid message record %d", i)
		}
		ts, err := timestampString(rj.Timestamp)
		if err != nil {
			return errors.Wrapf(err, "invalid timestamp in message record %d", i)
		}
		content := ""
		if rj.Content != nil {
			content = *rj.Content
		}
		records = append(records, Record{
			Role:      rj.Role,
			Content:   content,
			Timestamp: ts,
		})
	}
	*r = Raw{Form: FormFlat, Records: records}
	return nil
}

// MarshalJSON writes raw back in the wire shape it was received in.
func (r Raw) MarshalJSON() ([]byte, error) {
	switch r.Form {
	case FormExchange:
		out := make([]exchangeJSON, 0, len(r.Exchanges))
		for _, ex := range r.Exchanges {
			out = append(out, exchangeJSON{
				User:      ex.User,
				Assistant: ex.Assistant,
				Timestamp: timestampJSON(ex.Timestamp),
			})
		}
		return json.Marshal(out)
	case FormFlat:
		out := make([]recordJSON, 0, len(r.Records))
		for _, rec := range r.Records {
			content := rec.Content
			out = append(out, recordJSON{
				Role:      rec.Role,
				Content:   &content,
				Timestamp: timestampJSON(rec.Timestamp),
			})
		}
		return json.Marshal(out)
	case FormEmpty:
	}
	return []byte("[]"), nil
}

// timestampString accepts the string, null and numeric timestamps different
// backend versions have produced.
func timestampString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func timestampJSON(ts string) json.RawMessage {
	if ts == "" {
		return nil
	}
	b, _ := json.Marshal(ts)
	return b
}
