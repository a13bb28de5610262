package settings

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := New()
	require.NoError(t, s.Validate())
	assert.Equal(t, DefaultBaseURL, s.Client.BaseURL)
	assert.Equal(t, DefaultTimeout, s.Client.EffectiveTimeout())
	assert.Equal(t, 500, s.Chat.MaxTokens)
	assert.True(t, s.Chat.Stream)
}

func TestNewFromYAMLOverlaysDefaults(t *testing.T) {
	s, err := NewFromYAML(strings.NewReader(`
client:
  base_url: https://soc-backend.example.com
  timeout: 15
chat:
  model: Balanced (8B)
  stream: false
`))
	require.NoError(t, err)
	assert.Equal(t, "https://soc-backend.example.com", s.Client.BaseURL)
	require.NotNil(t, s.Client.Timeout)
	assert.Equal(t, 15*time.Second, *s.Client.Timeout)
	assert.Equal(t, "Balanced (8B)", s.Chat.Model)
	assert.False(t, s.Chat.Stream)
	assert.Equal(t, DefaultMaxTokens, s.Chat.MaxTokens)
}

func TestNewFromYAMLEmptyDocument(t *testing.T) {
	s, err := NewFromYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, s.Client.BaseURL)
}

func TestValidate(t *testing.T) {
	s := New()
	s.Chat.MaxTokens = 0
	assert.Error(t, s.Validate())

	s = New()
	s.Client.BaseURL = ""
	assert.Error(t, s.Validate())
}

func TestEffectiveTimeoutNeverZero(t *testing.T) {
	cs := NewClientSettings()
	cs.SetTimeout(0)
	assert.Equal(t, DefaultTimeout, cs.EffectiveTimeout())

	cs.SetTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, cs.EffectiveTimeout())
	assert.Equal(t, 5, *cs.TimeoutSeconds)
}

func TestCloneIsDeep(t *testing.T) {
	s := New()
	c := s.Clone()
	c.Client.SetTimeout(time.Second)
	c.Chat.Model = "x"
	assert.Equal(t, DefaultTimeout, *s.Client.Timeout)
	assert.Equal(t, "", s.Chat.Model)
}
