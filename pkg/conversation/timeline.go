package conversation

// DefaultSystemPrompt defines the assistant's operating instructions for a SOC analyst.
const DefaultSystemPrompt = `You are an AI assistant designed to help cybersecurity analysts investigate
and respond to alerts triggered in a SIEM (Security Information and Event Management) system.
Your role is to assist with incident triage, provide relevant context, suggest next steps,
reference past incidents, explain log data, and recommend playbooks or actions for containment,
eradication, and recovery. Always provide clear, concise, and technically sound responses.
Prioritize accuracy, use threat intelligence where relevant, and help analysts make quick and
informed decisions. If needed, ask clarifying questions to refine your recommendations.
Keep responses concise and to the point.`

// Timeline is the ordered view of the active session's messages.
// The first element is always the system message.
type Timeline []Message

// NewTimeline returns a timeline made of system followed by messages.
func NewTimeline(system Message, messages ...Message) Timeline {
	ret := make(Timeline, 0, len(messages)+1)
	ret = append(ret, system)
	for _, m := range messages {
		ret = append(ret, m.Clone())
	}
	return ret
}

func (t Timeline) System() Message {
	if len(t) == 0 {
		return Message{}
	}
	return t[0]
}

// Conversation returns everything after the system message.
func (t Timeline) Conversation() []Message {
	if len(t) <= 1 {
		return nil
	}
	return t[1:]
}

// Last returns the final message, which may be the system message.
func (t Timeline) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// LastAssistant returns the last message if it came from the assistant.
func (t Timeline) LastAssistant() (Message, bool) {
	last, ok := t.Last()
	if !ok || !last.IsAssistant() {
		return Message{}, false
	}
	return last, true
}

// Window returns at most the last n non-system messages, as a fresh slice.
func (t Timeline) Window(n int) []Message {
	msgs := t.Conversation()
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	ret := make([]Message, len(msgs))
	for i, m := range msgs {
		ret[i] = m.Clone()
	}
	return ret
}

func (t Timeline) Append(msgs ...Message) Timeline {
	ret := t.Clone()
	for _, m := range msgs {
		ret = append(ret, m.Clone())
	}
	return ret
}

func (t Timeline) Clone() Timeline {
	if t == nil {
		return nil
	}
	ret := make(Timeline, len(t))
	for i, m := range t {
		ret[i] = m.Clone()
	}
	return ret
}

// Reset drops every message but the system message.
func (t Timeline) Reset() Timeline {
	return NewTimeline(t.System())
}
