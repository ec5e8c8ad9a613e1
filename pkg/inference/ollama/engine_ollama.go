package ollama

import (
	"context"
	"os"
	"time"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/events"
	"github.com/DannyCKL/PromptAssistant/pkg/inference"
	"github.com/DannyCKL/PromptAssistant/pkg/settings"
	"github.com/google/uuid"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OllamaEngine implements the Engine interface against a local ollama server.
// Ollama has no separate reasoning channel, so only content events are
// published.
type OllamaEngine struct {
	settings *settings.Settings
	config   *inference.Config
}

func NewOllamaEngine(s *settings.Settings, options ...inference.Option) (*OllamaEngine, error) {
	config := inference.NewConfig()
	if err := inference.ApplyOptions(config, options...); err != nil {
		return nil, err
	}

	return &OllamaEngine{
		settings: s,
		config:   config,
	}, nil
}

// MakeClient builds an ollama API client. The client only reads its host from
// the environment, so a configured host is exported before construction.
func MakeClient(host string) (*api.Client, error) {
	if host != "" {
		if err := os.Setenv("OLLAMA_HOST", host); err != nil {
			return nil, errors.Wrap(err, "could not set OLLAMA_HOST")
		}
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return client, nil
}

func makeChatRequest(s *settings.Settings, messages conversation.Conversation) (*api.ChatRequest, error) {
	chatSettings := s.Chat
	if chatSettings == nil {
		return nil, errors.New("no chat settings")
	}
	if chatSettings.Model == "" {
		return nil, errors.New("no model specified")
	}

	ollamaMessages := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		ollamaMessages = append(ollamaMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	options := map[string]interface{}{}
	if chatSettings.Temperature != nil {
		options["temperature"] = *chatSettings.Temperature
	}
	if chatSettings.MaxResponseTokens != nil {
		options["num_predict"] = *chatSettings.MaxResponseTokens
	}

	stream := chatSettings.Stream
	return &api.ChatRequest{
		Model:    chatSettings.Model,
		Messages: ollamaMessages,
		Stream:   &stream,
		Options:  options,
	}, nil
}

// RunInference sends the conversation to the ollama server. The chat API
// streams through a callback and cannot hand back a stream handle, so the
// retry loop wraps a heartbeat preflight instead and the chat call itself
// runs once.
func (e *OllamaEngine) RunInference(
	ctx context.Context,
	messages conversation.Conversation,
) (*conversation.Message, error) {
	client, err := MakeClient(e.settings.OllamaHost)
	if err != nil {
		return nil, err
	}

	req, err := makeChatRequest(e.settings, messages)
	if err != nil {
		return nil, err
	}

	metadata := events.EventMetadata{
		ID: uuid.New(),
		LLMInferenceData: events.LLMInferenceData{
			Model:       req.Model,
			Temperature: e.settings.Chat.Temperature,
			MaxTokens:   e.settings.Chat.MaxResponseTokens,
		},
	}

	log.Debug().Str("event_id", metadata.ID.String()).Str("model", req.Model).Msg("ollama publishing start event")
	e.publishEvent(events.NewStartEvent(metadata))

	startTime := time.Now()

	_, err = inference.WithRetry(ctx, e.config.Retry, "ollama heartbeat",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, client.Heartbeat(ctx)
		})
	if err != nil {
		log.Error().Err(err).Msg("ollama server unreachable")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}

	reconstructor := inference.NewReconstructor()
	var usage *events.Usage
	var stopReason *string

	log.Debug().Msg("ollama starting chat")
	err = client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			if emission, ok := reconstructor.FeedContent(resp.Message.Content); ok {
				e.publishEvent(events.NewPartialCompletionEvent(metadata, emission.Delta, emission.Content))
			}
		}
		if resp.Done {
			usage = &events.Usage{
				InputTokens:  resp.PromptEvalCount,
				OutputTokens: resp.EvalCount,
			}
			reason := "stop"
			stopReason = &reason
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Debug().Msg("ollama chat cancelled by context")
			e.publishEvent(events.NewInterruptEvent(metadata, reconstructor.Content(), ""))
			return nil, err
		}
		log.Error().Err(err).Msg("ollama chat failed")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}

	if emission, ok := reconstructor.Flush(); ok {
		e.publishEvent(events.NewPartialCompletionEvent(metadata, emission.Delta, emission.Content))
	}

	metadata.Usage = usage
	metadata.StopReason = stopReason
	durationMs := time.Since(startTime).Milliseconds()
	metadata.DurationMs = &durationMs

	text := reconstructor.Content()
	log.Debug().
		Str("event_id", metadata.ID.String()).
		Int("final_length", len(text)).
		Msg("ollama publishing final event")
	e.publishEvent(events.NewFinalEvent(metadata, text, ""))

	return conversation.NewMessage(conversation.RoleAssistant, text, conversation.WithID(metadata.ID)), nil
}

func (e *OllamaEngine) publishEvent(event events.Event) {
	for _, sink := range e.config.EventSinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("failed to publish event to sink")
		}
	}
}

var _ inference.Engine = (*OllamaEngine)(nil)
