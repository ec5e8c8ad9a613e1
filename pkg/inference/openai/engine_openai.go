package openai

import (
	"context"
	"io"
	"time"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/events"
	"github.com/DannyCKL/PromptAssistant/pkg/inference"
	"github.com/DannyCKL/PromptAssistant/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine implements the Engine interface for any OpenAI-compatible chat
// completion endpoint, DeepSeek included. Reasoning deltas are forwarded as
// thinking events, content deltas are coalesced by the reconstructor before
// they are published.
type OpenAIEngine struct {
	settings *settings.Settings
	config   *inference.Config
}

// NewOpenAIEngine creates a new engine with the given settings and options.
func NewOpenAIEngine(s *settings.Settings, options ...inference.Option) (*OpenAIEngine, error) {
	config := inference.NewConfig()
	if err := inference.ApplyOptions(config, options...); err != nil {
		return nil, err
	}

	return &OpenAIEngine{
		settings: s,
		config:   config,
	}, nil
}

// RunInference sends the conversation to the endpoint and returns the
// assistant message. Snapshots of the reply stream out through the configured
// event sinks while the request is in flight.
func (e *OpenAIEngine) RunInference(
	ctx context.Context,
	messages conversation.Conversation,
) (*conversation.Message, error) {
	client, err := MakeClient(e.settings.Client)
	if err != nil {
		return nil, err
	}

	req, err := MakeCompletionRequest(e.settings, messages)
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

	log.Debug().Str("event_id", metadata.ID.String()).Msg("openai publishing start event")
	e.publishEvent(events.NewStartEvent(metadata))

	startTime := time.Now()
	if !req.Stream {
		return e.runBlocking(ctx, client, req, metadata, startTime)
	}
	return e.runStreaming(ctx, client, req, metadata, startTime)
}

func (e *OpenAIEngine) runStreaming(
	ctx context.Context,
	client *go_openai.Client,
	req *go_openai.ChatCompletionRequest,
	metadata events.EventMetadata,
	startTime time.Time,
) (*conversation.Message, error) {
	stream, err := inference.WithRetry(ctx, e.config.Retry, "chat completion stream",
		func(ctx context.Context) (*go_openai.ChatCompletionStream, error) {
			return client.CreateChatCompletionStream(ctx, *req)
		})
	if err != nil {
		log.Error().Err(err).Msg("openai streaming request failed")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close completion stream")
		}
	}()

	reconstructor := inference.NewReconstructor()
	var usage *events.Usage
	var stopReason *string

	log.Debug().Msg("openai starting streaming loop")
	chunkCount := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("chunks_received", chunkCount).Msg("openai streaming cancelled by context")
			e.publishEvent(events.NewInterruptEvent(metadata, reconstructor.Content(), reconstructor.Reasoning()))
			return nil, ctx.Err()

		default:
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				log.Debug().Int("chunks_received", chunkCount).Msg("openai stream completed")
				goto streamingComplete
			}
			if err != nil {
				log.Error().Err(err).Int("chunks_received", chunkCount).Msg("openai stream receive failed")
				e.publishEvent(events.NewErrorEvent(metadata, err))
				return nil, err
			}
			chunkCount++

			if response.Usage != nil {
				usage = usageFromResponse(response.Usage)
			}
			if len(response.Choices) > 0 {
				choice := response.Choices[0]
				if reason := string(choice.FinishReason); reason != "" && reason != "null" {
					stopReason = &reason
				}

				if choice.Delta.ReasoningContent != "" {
					emission := reconstructor.FeedReasoning(choice.Delta.ReasoningContent)
					e.publishEvent(events.NewThinkingPartialEvent(metadata, emission.Delta, emission.Reasoning))
				}
				if choice.Delta.Content != "" {
					if emission, ok := reconstructor.FeedContent(choice.Delta.Content); ok {
						e.publishEvent(events.NewPartialCompletionEvent(metadata, emission.Delta, emission.Content))
					}
				}
			}
		}
	}

streamingComplete:
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
		Msg("openai publishing final event (streaming)")
	e.publishEvent(events.NewFinalEvent(metadata, text, reconstructor.Reasoning()))

	return conversation.NewMessage(conversation.RoleAssistant, text, conversation.WithID(metadata.ID)), nil
}

func (e *OpenAIEngine) runBlocking(
	ctx context.Context,
	client *go_openai.Client,
	req *go_openai.ChatCompletionRequest,
	metadata events.EventMetadata,
	startTime time.Time,
) (*conversation.Message, error) {
	resp, err := inference.WithRetry(ctx, e.config.Retry, "chat completion",
		func(ctx context.Context) (go_openai.ChatCompletionResponse, error) {
			return client.CreateChatCompletion(ctx, *req)
		})
	if err != nil {
		log.Error().Err(err).Msg("openai completion request failed")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err := errors.New("no completion choices returned")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}

	choice := resp.Choices[0]
	if reason := string(choice.FinishReason); reason != "" {
		metadata.StopReason = &reason
	}
	metadata.Usage = usageFromResponse(&resp.Usage)
	durationMs := time.Since(startTime).Milliseconds()
	metadata.DurationMs = &durationMs

	text := choice.Message.Content
	log.Debug().
		Str("event_id", metadata.ID.String()).
		Int("final_length", len(text)).
		Msg("openai publishing final event (blocking)")
	e.publishEvent(events.NewFinalEvent(metadata, text, choice.Message.ReasoningContent))

	return conversation.NewMessage(conversation.RoleAssistant, text, conversation.WithID(metadata.ID)), nil
}

func (e *OpenAIEngine) publishEvent(event events.Event) {
	for _, sink := range e.config.EventSinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("failed to publish event to sink")
		}
	}
}

var _ inference.Engine = (*OpenAIEngine)(nil)
