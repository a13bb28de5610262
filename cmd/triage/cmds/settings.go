package cmds

import (
	"os"
	"time"

	"github.com/go-go-golems/triage/pkg/core"
	"github.com/go-go-golems/triage/pkg/gateway"
	"github.com/go-go-golems/triage/pkg/models"
	"github.com/go-go-golems/triage/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadSettings starts from the --settings file (or the defaults) and applies every
// flag, env variable or config key that was explicitly set.
func LoadSettings() (*settings.Settings, error) {
	s := settings.New()

	if path := viper.GetString("settings"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not open settings file")
		}
		defer func() { _ = f.Close() }()

		s, err = settings.NewFromYAML(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load %s", path)
		}
	}

	if viper.IsSet("base-url") || s.Client.BaseURL == "" {
		s.Client.BaseURL = viper.GetString("base-url")
	}
	if viper.IsSet("timeout") {
		s.Client.SetTimeout(time.Duration(viper.GetInt("timeout")) * time.Second)
	}
	if viper.IsSet("allow-remote-http") {
		s.Client.AllowRemoteHTTP = viper.GetBool("allow-remote-http")
	}
	if viper.IsSet("model") {
		s.Chat.Model = viper.GetString("model")
	}
	if viper.IsSet("max-tokens") {
		s.Chat.MaxTokens = viper.GetInt("max-tokens")
	}
	if viper.IsSet("stream") {
		s.Chat.Stream = viper.GetBool("stream")
	}
	if viper.IsSet("models-file") {
		s.Chat.ModelsFile = viper.GetString("models-file")
	}
	if viper.IsSet("system-prompt") {
		s.Chat.SystemPrompt = viper.GetString("system-prompt")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewCore wires the backend client, model catalog and conversation core from s.
func NewCore(s *settings.Settings, options ...core.Option) (*core.Core, *gateway.Client, error) {
	client, err := gateway.NewClient(s.Client)
	if err != nil {
		return nil, nil, err
	}

	catalog := models.Default()
	if s.Chat.ModelsFile != "" {
		catalog, err = models.LoadFile(s.Chat.ModelsFile)
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []core.Option{core.WithCatalog(catalog)}
	if s.Chat.SystemPrompt != "" {
		opts = append(opts, core.WithSystemPrompt(s.Chat.SystemPrompt))
	}
	opts = append(opts, options...)
	c := core.New(client, opts...)

	if s.Chat.Model != "" {
		if err := c.SelectModel(s.Chat.Model); err != nil {
			return nil, nil, err
		}
	}

	log.Debug().
		Str("base_url", client.BaseURL()).
		Str("model", c.Snapshot().SelectedModel).
		Msg("conversation core ready")

	return c, client, nil
}

func sendOptions(s *settings.Settings) core.SendOptions {
	return core.SendOptions{
		MaxTokens: s.Chat.MaxTokens,
		Streaming: s.Chat.Stream,
	}
}
