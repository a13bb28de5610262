package settings

import (
	"io"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL   = "http://localhost:5001"
	DefaultMaxTokens = 500
	DefaultTimeout   = 60 * time.Second

	// ContextWindow is how many prior messages travel with each send.
	ContextWindow = 10
)

type ClientSettings struct {
	BaseURL        string         `yaml:"base_url,omitempty"`
	Timeout        *time.Duration `yaml:"-"`
	TimeoutSeconds *int           `yaml:"timeout,omitempty"`
	UserAgent      *string        `yaml:"user_agent,omitempty"`
	// AllowRemoteHTTP permits plain http to non-local hosts. Local backends may
	// always use http.
	AllowRemoteHTTP bool `yaml:"allow_remote_http,omitempty"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := DefaultTimeout
	return &ClientSettings{
		BaseURL: DefaultBaseURL,
		Timeout: &defaultTimeout,
		TimeoutSeconds: func() *int {
			i := int(defaultTimeout.Seconds())
			return &i
		}(),
	}
}

// UnmarshalYAML converts the timeout, given in seconds, into a time.Duration.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ClientSettings
	if err := value.Decode((*Alias)(cs)); err != nil {
		return err
	}
	if cs.TimeoutSeconds != nil {
		t := time.Duration(*cs.TimeoutSeconds) * time.Second
		cs.Timeout = &t
	}
	return nil
}

func (cs *ClientSettings) SetTimeout(d time.Duration) {
	seconds := int(d.Seconds())
	cs.Timeout = &d
	cs.TimeoutSeconds = &seconds
}

// EffectiveTimeout never returns zero; a backend that hangs must not hold a send forever.
func (cs *ClientSettings) EffectiveTimeout() time.Duration {
	if cs.Timeout == nil || *cs.Timeout <= 0 {
		return DefaultTimeout
	}
	return *cs.Timeout
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

type ChatSettings struct {
	// Model is a catalog label or a raw model identifier.
	Model        string `yaml:"model,omitempty"`
	MaxTokens    int    `yaml:"max_tokens,omitempty"`
	Stream       bool   `yaml:"stream"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
	ModelsFile   string `yaml:"models_file,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		MaxTokens: DefaultMaxTokens,
		Stream:    true,
	}
}

func (cs *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(cs).(*ChatSettings)
}

type Settings struct {
	Client *ClientSettings `yaml:"client,omitempty"`
	Chat   *ChatSettings   `yaml:"chat,omitempty"`
}

func New() *Settings {
	return &Settings{
		Client: NewClientSettings(),
		Chat:   NewChatSettings(),
	}
}

// NewFromYAML overlays the YAML document read from r on top of the defaults.
func NewFromYAML(r io.Reader) (*Settings, error) {
	ret := New()
	if err := yaml.NewDecoder(r).Decode(ret); err != nil {
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if ret.Client == nil {
		ret.Client = NewClientSettings()
	}
	if ret.Chat == nil {
		ret.Chat = NewChatSettings()
	}
	return ret, nil
}

func (s *Settings) Validate() error {
	if s.Client == nil || s.Client.BaseURL == "" {
		return errors.New("a backend base URL is required")
	}
	if s.Chat == nil {
		return errors.New("chat settings are missing")
	}
	if s.Chat.MaxTokens <= 0 {
		return errors.Errorf("max tokens must be positive, got %d", s.Chat.MaxTokens)
	}
	return nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
