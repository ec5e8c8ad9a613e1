package factory

import (
	"strings"

	"github.com/DannyCKL/PromptAssistant/pkg/inference"
	"github.com/DannyCKL/PromptAssistant/pkg/inference/ollama"
	"github.com/DannyCKL/PromptAssistant/pkg/inference/openai"
	"github.com/DannyCKL/PromptAssistant/pkg/settings"
	"github.com/pkg/errors"
)

// EngineFactory creates inference engines based on provider settings. It
// keeps the calling code from knowing about specific engine implementations.
type EngineFactory interface {
	// CreateEngine creates an Engine instance based on the provided settings.
	// The actual provider is determined from settings.API.
	CreateEngine(settings *settings.Settings, options ...inference.Option) (inference.Engine, error)

	// SupportedProviders returns the provider names this factory supports.
	SupportedProviders() []string

	// DefaultProvider returns the provider used when settings.API is empty.
	DefaultProvider() string
}

// StandardEngineFactory is the default implementation of EngineFactory. It
// creates engines for OpenAI-compatible endpoints and for local ollama.
type StandardEngineFactory struct{}

func NewStandardEngineFactory() *StandardEngineFactory {
	return &StandardEngineFactory{}
}

// CreateEngine creates an Engine instance for the provider named in
// settings.API, falling back to the default provider when unset.
func (f *StandardEngineFactory) CreateEngine(s *settings.Settings, options ...inference.Option) (inference.Engine, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}

	provider := f.DefaultProvider()
	if s.API != "" {
		provider = strings.ToLower(string(s.API))
	}

	if err := f.validateSettings(s, provider); err != nil {
		return nil, errors.Wrapf(err, "invalid settings for provider %s", provider)
	}

	switch provider {
	case string(settings.APITypeOpenAI), "deepseek":
		return openai.NewOpenAIEngine(s, options...)

	case string(settings.APITypeOllama):
		return ollama.NewOllamaEngine(s, options...)

	default:
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s", provider, supported)
	}
}

// SupportedProviders returns the list of providers this factory can create
// engines for.
func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(settings.APITypeOpenAI),
		"deepseek", // alias for openai
		string(settings.APITypeOllama),
	}
}

// DefaultProvider returns the provider used when settings.API is empty.
func (f *StandardEngineFactory) DefaultProvider() string {
	return string(settings.APITypeOpenAI)
}

func (f *StandardEngineFactory) validateSettings(s *settings.Settings, provider string) error {
	if s.Chat == nil {
		return errors.New("chat settings cannot be nil")
	}
	if s.Chat.Model == "" {
		return errors.New("no model specified")
	}

	switch provider {
	case string(settings.APITypeOpenAI), "deepseek":
		if s.Client == nil {
			return errors.New("client settings cannot be nil")
		}
		if s.Client.APIKey == "" {
			return errors.New("missing api key")
		}
		return nil

	case string(settings.APITypeOllama):
		if s.OllamaHost == "" {
			return errors.New("missing ollama host")
		}
		return nil

	default:
		return errors.Errorf("unknown provider %s", provider)
	}
}

var _ EngineFactory = (*StandardEngineFactory)(nil)
