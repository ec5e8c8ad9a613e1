package inference

import (
	"context"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
)

// titleModel adapts an Engine to the conversation.TitleModel interface so a
// non-streaming engine can be handed to the title generator.
type titleModel struct {
	engine Engine
}

func NewTitleModel(engine Engine) conversation.TitleModel {
	return &titleModel{engine: engine}
}

func (m *titleModel) Complete(ctx context.Context, messages conversation.Conversation) (string, error) {
	msg, err := m.engine.RunInference(ctx, messages)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

var _ conversation.TitleModel = (*titleModel)(nil)
