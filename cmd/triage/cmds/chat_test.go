package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/triage/pkg/core"
	"github.com/go-go-golems/triage/pkg/settings"
	"github.com/go-go-golems/triage/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// testBackend mimics the assistant backend, storing flat-form histories.
type testBackend struct {
	mu       sync.Mutex
	order    []string
	messages map[string][]backendMessage
	nextID   int
}

func newTestBackend(t *testing.T) (*testBackend, *httptest.Server) {
	b := &testBackend{messages: map[string][]backendMessage{}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *testBackend) create() string {
	b.nextID++
	id := fmt.Sprintf("s%d", b.nextID)
	b.order = append(b.order, id)
	b.messages[id] = []backendMessage{}
	return id
}

func (b *testBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	reply := func(v interface{}) { _ = json.NewEncoder(w).Encode(v) }
	path := r.URL.Path

	switch {
	case path == "/conversation-history":
		sessions := []map[string]interface{}{}
		for _, id := range b.order {
			preview := "Empty chat"
			if len(b.messages[id]) > 0 {
				preview = b.messages[id][0].Content
			}
			sessions = append(sessions, map[string]interface{}{
				"session_id":     id,
				"preview":        preview,
				"model":          "llama3.2:3b",
				"exchange_count": len(b.messages[id]) / 2,
				"last_updated":   "2024-05-01 10:00:00",
			})
		}
		reply(map[string]interface{}{"sessions": sessions, "total_sessions": len(sessions)})

	case strings.HasPrefix(path, "/session-history/"):
		id := strings.TrimPrefix(path, "/session-history/")
		msgs, ok := b.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			reply(map[string]string{"error": "Session not found"})
			return
		}
		reply(map[string]interface{}{"conversation_history": msgs, "model": "llama3.2:1b"})

	case path == "/chat":
		var req struct {
			Message   string `json:"message"`
			SessionID string `json:"sessionId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		id := req.SessionID
		if id == "" {
			id = b.create()
		}
		answer := "Next steps:\n□ Block " + req.Message + "\n□ Notify owner"
		b.messages[id] = append(b.messages[id],
			backendMessage{Role: "user", Content: req.Message},
			backendMessage{Role: "assistant", Content: answer},
		)
		reply(map[string]interface{}{"response": answer, "responseTime": 0.8, "sessionId": id})

	case path == "/new-session":
		reply(map[string]interface{}{"sessionId": b.create()})

	case strings.HasPrefix(path, "/clear-session/"):
		b.messages[strings.TrimPrefix(path, "/clear-session/")] = []backendMessage{}
		reply(map[string]string{"message": "ok"})

	case path == "/clear-all-sessions":
		b.order = nil
		b.messages = map[string][]backendMessage{}
		reply(map[string]string{"message": "ok"})

	default:
		w.WriteHeader(http.StatusNotFound)
		reply(map[string]string{"error": "not found"})
	}
}

type scriptReader struct {
	lines []string
}

func (s *scriptReader) ReadLine(prompt string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newTestLoop(t *testing.T, baseURL string, script ...string) (*chatLoop, *bytes.Buffer) {
	t.Helper()
	s := settings.New()
	s.Client.BaseURL = baseURL
	c, _, err := NewCore(s)
	require.NoError(t, err)

	var out bytes.Buffer
	return &chatLoop{
		core:     c,
		renderer: ui.NewRenderer(&out),
		reader:   &scriptReader{lines: script},
		opts:     sendOptions(s),
	}, &out
}

func TestChatLoopConversation(t *testing.T) {
	backend, srv := newTestBackend(t)
	loop, out := newTestLoop(t, srv.URL,
		"10.0.0.5",
		"/check 1",
		"/sessions",
		"/quit",
		"never sent",
	)

	require.NoError(t, loop.Run(context.Background(), ""))

	snap := loop.core.Snapshot()
	assert.Equal(t, "s1", snap.ActiveSessionID)
	require.Len(t, snap.Timeline, 3)
	require.Len(t, snap.Checklist, 2)
	assert.True(t, snap.Checklist[0].Completed)
	assert.Equal(t, 50, snap.Progress)
	assert.Len(t, backend.messages["s1"], 2, "input after /quit is not sent")

	text := out.String()
	assert.Contains(t, text, "Block 10.0.0.5")
	assert.Contains(t, text, "50% done")
	assert.Contains(t, text, "s1")
}

func TestChatLoopSessionCommands(t *testing.T) {
	backend, srv := newTestBackend(t)
	loop, out := newTestLoop(t, srv.URL)
	ctx := context.Background()

	quit, err := loop.Handle(ctx, "/new")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "started session s1")

	_, err = loop.Handle(ctx, "phishing mail")
	require.NoError(t, err)

	_, err = loop.Handle(ctx, "/new")
	require.NoError(t, err)
	assert.Len(t, loop.core.Snapshot().Timeline, 1)

	_, err = loop.Handle(ctx, "/switch 1")
	require.NoError(t, err)
	snap := loop.core.Snapshot()
	assert.Equal(t, "s1", snap.ActiveSessionID)
	assert.Len(t, snap.Timeline, 3)
	assert.Equal(t, "Fast (1B)", snap.SelectedModel)

	_, err = loop.Handle(ctx, "/clear")
	require.NoError(t, err)
	assert.Len(t, loop.core.Snapshot().Timeline, 1)
	assert.Empty(t, backend.messages["s1"])

	_, err = loop.Handle(ctx, "/model Balanced (8B)")
	require.NoError(t, err)
	assert.Equal(t, "Balanced (8B)", loop.core.Snapshot().SelectedModel)

	_, err = loop.Handle(ctx, "/model nope")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = loop.Handle(ctx, "/bogus")
	assert.Error(t, err)

	_, err = loop.Handle(ctx, "/check 3")
	assert.Error(t, err)
}

func TestChatLoopClearAllAsksFirst(t *testing.T) {
	backend, srv := newTestBackend(t)
	loop, out := newTestLoop(t, srv.URL, "n", "y")
	ctx := context.Background()

	_, err := loop.Handle(ctx, "hello")
	require.NoError(t, err)

	_, err = loop.Handle(ctx, "/clear-all")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "aborted")
	assert.Len(t, backend.order, 1)

	_, err = loop.Handle(ctx, "/clear-all")
	require.NoError(t, err)
	assert.Empty(t, backend.order)
	assert.False(t, loop.core.Snapshot().HasSession())
}

func TestChatLoopBackendDown(t *testing.T) {
	_, srv := newTestBackend(t)
	url := srv.URL
	srv.Close()

	loop, _ := newTestLoop(t, url)
	_, err := loop.Handle(context.Background(), "hello")
	require.Error(t, err)

	snap := loop.core.Snapshot()
	assert.Equal(t, core.StatusIdle, snap.Status)
	last, _ := snap.Timeline.Last()
	assert.Equal(t, "hello", last.Content)
	assert.Error(t, snap.LastError)
}
