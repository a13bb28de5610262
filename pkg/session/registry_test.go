package session

import (
	"context"
	"errors"
	"testing"

	"github.com/go-go-golems/triage/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	sessions []Session
	err      error
	calls    int
}

func (s *stubLister) ListSessions(ctx context.Context) ([]Session, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.sessions, nil
}

func TestEmptyListGivesNewChatTitles(t *testing.T) {
	r := NewRegistry(&stubLister{sessions: []Session{}}, nil)
	sessions, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "New Chat", r.TitleOf("anything"))
	assert.Equal(t, "New Chat", r.TitleOf(""))
}

func TestRefreshReplacesSet(t *testing.T) {
	l := &stubLister{sessions: []Session{
		{SessionID: "a", Preview: "Phishing email...", Model: "llama3.2:3b"},
		{SessionID: "b", Preview: "Brute force..."},
	}}
	r := NewRegistry(l, nil)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "Phishing email...", r.TitleOf("a"))
	assert.True(t, r.Has("b"))

	l.sessions = []Session{{SessionID: "c", Preview: "Malware"}}
	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Has("a"))
	assert.Equal(t, "Malware", r.TitleOf("c"))
}

func TestRefreshFailureKeepsPreviousSet(t *testing.T) {
	l := &stubLister{sessions: []Session{{SessionID: "a", Preview: "p"}}}
	r := NewRegistry(l, nil)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	l.err = errors.New("connection refused")
	sessions, err := r.Refresh(context.Background())
	require.Error(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "p", r.TitleOf("a"))
	assert.Equal(t, 2, l.calls)
}

func TestRefreshCopiesBackendSlice(t *testing.T) {
	backing := []Session{{SessionID: "a", Preview: "p"}}
	r := NewRegistry(&stubLister{sessions: backing}, nil)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	backing[0].Preview = "mutated"
	assert.Equal(t, "p", r.TitleOf("a"))
}

func TestModelLabelOf(t *testing.T) {
	r := NewRegistry(&stubLister{}, models.Default())
	assert.Equal(t, "Balanced (8B)", r.ModelLabelOf("deepseek-r1:8b"))
	assert.Equal(t, "Unknown", r.ModelLabelOf("gpt-4o"))
	assert.Equal(t, "Unknown", r.ModelLabelOf(""))
}

func TestClear(t *testing.T) {
	r := NewRegistry(&stubLister{sessions: []Session{{SessionID: "a"}}}, nil)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.NotNil(t, r.Sessions())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 40))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "□□...", Truncate("□□□□", 2))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
	assert.Equal(t, "Phish...", Session{Preview: "Phishing"}.ShortPreview(5))
}
