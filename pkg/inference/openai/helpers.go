package openai

import (
	"net/http"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/events"
	"github.com/DannyCKL/PromptAssistant/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// MakeClient builds a go-openai client from client settings. The base URL is
// what points it at DeepSeek or any other OpenAI-compatible endpoint.
func MakeClient(clientSettings *settings.ClientSettings) (*go_openai.Client, error) {
	if clientSettings == nil {
		return nil, errors.New("no client settings")
	}
	if clientSettings.APIKey == "" {
		return nil, errors.New("no api key")
	}

	config := go_openai.DefaultConfig(clientSettings.APIKey)
	if clientSettings.BaseURL != "" {
		config.BaseURL = clientSettings.BaseURL
	}
	if clientSettings.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: clientSettings.Timeout}
	}

	return go_openai.NewClientWithConfig(config), nil
}

func roleToOpenAI(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return go_openai.ChatMessageRoleSystem
	case conversation.RoleUser:
		return go_openai.ChatMessageRoleUser
	case conversation.RoleAssistant:
		return go_openai.ChatMessageRoleAssistant
	default:
		return string(role)
	}
}

// MakeCompletionRequest builds a ChatCompletionRequest from the conversation
// history. Messages with empty content are skipped.
func MakeCompletionRequest(
	s *settings.Settings,
	messages conversation.Conversation,
) (*go_openai.ChatCompletionRequest, error) {
	if s.Client == nil {
		return nil, errors.New("no client settings")
	}
	chatSettings := s.Chat
	if chatSettings == nil {
		return nil, errors.New("no chat settings")
	}
	if chatSettings.Model == "" {
		return nil, errors.New("no model specified")
	}

	msgs_ := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			log.Debug().Str("role", string(msg.Role)).Msg("skipping empty message in request")
			continue
		}
		msgs_ = append(msgs_, go_openai.ChatCompletionMessage{
			Role:    roleToOpenAI(msg.Role),
			Content: msg.Content,
		})
	}

	temperature := 0.0
	if chatSettings.Temperature != nil {
		temperature = *chatSettings.Temperature
	}
	maxTokens := 0
	if chatSettings.MaxResponseTokens != nil {
		maxTokens = *chatSettings.MaxResponseTokens
	}
	stream := chatSettings.Stream

	log.Debug().
		Str("model", chatSettings.Model).
		Int("num_messages", len(msgs_)).
		Int("max_tokens", maxTokens).
		Float64("temperature", temperature).
		Bool("stream", stream).
		Msg("making request to openai-compatible endpoint")

	var streamOptions *go_openai.StreamOptions
	if stream {
		streamOptions = &go_openai.StreamOptions{IncludeUsage: true}
	}

	req := go_openai.ChatCompletionRequest{
		Model:         chatSettings.Model,
		Messages:      msgs_,
		MaxTokens:     maxTokens,
		Temperature:   float32(temperature),
		Stream:        stream,
		StreamOptions: streamOptions,
		User:          chatSettings.User,
	}

	return &req, nil
}

func usageFromResponse(usage *go_openai.Usage) *events.Usage {
	if usage == nil {
		return nil
	}
	ret := &events.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}
	if usage.PromptTokensDetails != nil {
		ret.CachedTokens = usage.PromptTokensDetails.CachedTokens
	}
	return ret
}
