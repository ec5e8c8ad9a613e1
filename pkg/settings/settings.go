package settings

import (
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/DannyCKL/PromptAssistant/pkg/helpers"
)

type APIType string

const (
	// APITypeOpenAI covers every OpenAI-compatible chat completion endpoint,
	// DeepSeek included.
	APITypeOpenAI APIType = "openai"
	APITypeOllama APIType = "ollama"
)

const (
	DefaultBaseURL    = "https://api.deepseek.com"
	DefaultModel      = "deepseek-chat"
	DefaultTimeout    = 120 * time.Second
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultUser is the fixed user tag sent with every request, kept for
	// endpoint-side accounting.
	DefaultUser = "123456"
)

const (
	titleMaxTokens   = 50
	titleTemperature = 0.3
)

// ClientSettings configure the HTTP client talking to the remote endpoint.
type ClientSettings struct {
	APIKey  string        `yaml:"api_key,omitempty" mapstructure:"api-key"`
	BaseURL string        `yaml:"base_url,omitempty" mapstructure:"base-url"`
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

func NewClientSettings() *ClientSettings {
	return &ClientSettings{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// ChatSettings configure a single chat completion request.
type ChatSettings struct {
	Model             string   `yaml:"model,omitempty" mapstructure:"model"`
	Temperature       *float64 `yaml:"temperature,omitempty" mapstructure:"temperature"`
	MaxResponseTokens *int     `yaml:"max_response_tokens,omitempty" mapstructure:"max-response-tokens"`
	Stream            bool     `yaml:"stream,omitempty" mapstructure:"stream"`
	User              string   `yaml:"user,omitempty" mapstructure:"user"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Model:  DefaultModel,
		Stream: true,
		User:   DefaultUser,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// Settings aggregates everything needed to construct an engine.
type Settings struct {
	API        APIType         `yaml:"api_type,omitempty" mapstructure:"api-type"`
	Client     *ClientSettings `yaml:"client,omitempty" mapstructure:"client"`
	Chat       *ChatSettings   `yaml:"chat,omitempty" mapstructure:"chat"`
	OllamaHost string          `yaml:"ollama_host,omitempty" mapstructure:"ollama-host"`
}

func NewSettings() *Settings {
	return &Settings{
		API:        APITypeOpenAI,
		Client:     NewClientSettings(),
		Chat:       NewChatSettings(),
		OllamaHost: DefaultOllamaHost,
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// ForTitleGeneration returns a clone tuned for title generation: streaming
// off, short responses, low temperature.
func (s *Settings) ForTitleGeneration() *Settings {
	ret := s.Clone()
	if ret.Chat == nil {
		ret.Chat = NewChatSettings()
	}
	ret.Chat.Stream = false
	ret.Chat.MaxResponseTokens = helpers.IntPointer(titleMaxTokens)
	ret.Chat.Temperature = helpers.Float64Pointer(titleTemperature)
	return ret
}

func (s *Settings) Validate() error {
	if s.Chat == nil || s.Chat.Model == "" {
		return errors.New("model is required")
	}
	switch s.API {
	case APITypeOpenAI:
		if s.Client == nil || s.Client.APIKey == "" {
			return errors.New("api key is required")
		}
	case APITypeOllama:
		if s.OllamaHost == "" {
			return errors.New("ollama host is required")
		}
	default:
		return errors.Errorf("unknown api type %q", s.API)
	}
	return nil
}

// NewSettingsFromViper resolves settings from the given viper instance,
// falling back to the package defaults for anything unset.
func NewSettingsFromViper(v *viper.Viper) (*Settings, error) {
	ret := NewSettings()

	if apiType := v.GetString("api-type"); apiType != "" {
		ret.API = APIType(apiType)
	}
	if apiKey := v.GetString("api-key"); apiKey != "" {
		ret.Client.APIKey = apiKey
	}
	if baseURL := v.GetString("base-url"); baseURL != "" {
		ret.Client.BaseURL = baseURL
	}
	if timeout := v.GetDuration("timeout"); timeout > 0 {
		ret.Client.Timeout = timeout
	}
	if model := v.GetString("model"); model != "" {
		ret.Chat.Model = model
	}
	if v.IsSet("stream") {
		ret.Chat.Stream = v.GetBool("stream")
	}
	if user := v.GetString("user"); user != "" {
		ret.Chat.User = user
	}
	if v.IsSet("temperature") {
		ret.Chat.Temperature = helpers.Float64Pointer(v.GetFloat64("temperature"))
	}
	if v.IsSet("max-response-tokens") {
		ret.Chat.MaxResponseTokens = helpers.IntPointer(v.GetInt("max-response-tokens"))
	}
	if host := v.GetString("ollama-host"); host != "" {
		ret.OllamaHost = host
	}

	return ret, nil
}
