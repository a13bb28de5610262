package ui

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/triage/pkg/checklist"
	"github.com/go-go-golems/triage/pkg/conversation"
	"github.com/go-go-golems/triage/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcnksm/go-input"
)

func TestRendererTimeline(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Timeline(conversation.NewTimeline(conversation.NewSystemMessage("sys")))
	assert.Contains(t, buf.String(), "(no messages yet)")

	buf.Reset()
	tl := conversation.NewTimeline(conversation.NewSystemMessage("sys"),
		conversation.NewMessage(conversation.RoleUser, "Suspicious login", conversation.WithTimestamp("10:00:00")),
		conversation.NewMessage(conversation.RoleAssistant, "□ Check auth logs\n", conversation.WithResponseTime(1.234)),
	)
	r.Timeline(tl)
	out := buf.String()
	assert.NotContains(t, out, "sys")
	assert.Contains(t, out, "[user] 10:00:00")
	assert.Contains(t, out, "[assistant] (1.23s)")
	assert.Contains(t, out, "□ Check auth logs")
}

func TestRendererChecklist(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	r.Checklist([]checklist.Item{
		{ID: "1", Text: "Isolate host", Completed: true},
		{ID: "2", Text: "Reset password"},
	}, 50)
	out := buf.String()
	assert.Contains(t, out, "50% done")
	assert.Contains(t, out, "1. ■ Isolate host")
	assert.Contains(t, out, "2. □ Reset password")
}

func TestRendererSessions(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	r.Sessions(nil, "")
	assert.Contains(t, buf.String(), "(no sessions)")

	buf.Reset()
	r.Sessions([]session.Session{
		{SessionID: "abc", Preview: "Phishing report from finance", Model: "llama3.2:3b", ExchangeCount: 3},
		{SessionID: "def", Preview: "Empty chat"},
	}, "abc")
	out := buf.String()
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "Phishing report from finance")
	assert.Contains(t, out, "*")
	assert.Contains(t, strings.ToUpper(out), "EXCHANGES")
}

func TestConfirm(t *testing.T) {
	for answer, want := range map[string]bool{"y\n": true, "N\n": false} {
		var out bytes.Buffer
		ok, err := confirm(&input.UI{Reader: strings.NewReader(answer), Writer: &out}, "Delete everything?", false)
		require.NoError(t, err, answer)
		assert.Equal(t, want, ok, answer)
		assert.Contains(t, out.String(), "Delete everything? [y/n]")
	}
}

func TestLineReaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("/sessions\n  hello there \n/quit\n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	lr := NewLineReader(f, io.Discard)
	var lines []string
	for {
		line, err := lr.ReadLine("> ")
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"/sessions", "hello there", "/quit"}, lines)
}
