package inference

import "github.com/DannyCKL/PromptAssistant/pkg/events"

// Option is a functional option for configuring inference components.
type Option func(*Config) error

// Config holds configuration for inference engines and event publishing.
type Config struct {
	// EventSinks holds all registered event sinks for publishing inference events.
	// Events are published to all sinks in the order they were added.
	EventSinks []EventSink

	// Retry governs how request setup is retried before giving up.
	Retry RetryConfig
}

// NewConfig creates a new configuration with default values.
func NewConfig() *Config {
	return &Config{
		EventSinks: make([]EventSink, 0),
		Retry:      DefaultRetryConfig(),
	}
}

// WithSink adds an EventSink to the configuration.
// Multiple sinks can be added and events will be published to all of them.
func WithSink(sink EventSink) Option {
	return func(c *Config) error {
		c.EventSinks = append(c.EventSinks, sink)
		return nil
	}
}

// WithSinks adds several EventSinks at once.
func WithSinks(sinks ...EventSink) Option {
	return func(c *Config) error {
		c.EventSinks = append(c.EventSinks, sinks...)
		return nil
	}
}

// WithRetryConfig overrides the retry behavior used when acquiring a
// completion from the provider.
func WithRetryConfig(retry RetryConfig) Option {
	return func(c *Config) error {
		c.Retry = retry
		return nil
	}
}

// ApplyOptions applies a set of options to a configuration.
func ApplyOptions(config *Config, options ...Option) error {
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}
	return nil
}

// PublishEvent sends the event to every sink, logging nothing and returning
// the first error encountered.
func (c *Config) PublishEvent(event events.Event) error {
	for _, sink := range c.EventSinks {
		if err := sink.PublishEvent(event); err != nil {
			return err
		}
	}
	return nil
}
