package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const titleContextMessages = 6

const titleSystemPrompt = "You are a professional conversation title generator. " +
	"Given the conversation between the user and the assistant, produce a concise, " +
	"accurate title of 20 characters at most, summarizing the main topic or core " +
	"question. Reply with the title only, nothing else."

// TitleModel produces one non-streaming completion for a prompt conversation.
type TitleModel interface {
	Complete(ctx context.Context, messages Conversation) (string, error)
}

// TitleGenerator derives conversation titles from their recent messages.
// Generation is strictly best effort: any failure leaves the stored title
// untouched.
type TitleGenerator struct {
	store Store
	model TitleModel
}

func NewTitleGenerator(store Store, model TitleModel) *TitleGenerator {
	return &TitleGenerator{
		store: store,
		model: model,
	}
}

// Generate builds a condensed context from the record's last messages, asks the
// model for a title and applies it. It reports whether the title was updated.
// Records with fewer than two messages (no full exchange yet) are skipped.
func (g *TitleGenerator) Generate(ctx context.Context, id string) bool {
	record, err := g.store.Get(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("conversation_id", id).Msg("title generation skipped")
		return false
	}
	if len(record.Messages) < 2 {
		return false
	}

	prompt := Conversation{
		NewMessage(RoleSystem, titleSystemPrompt),
		NewMessage(RoleUser, "Generate a title for the following conversation:\n\n"+condenseForTitle(record.Messages)),
	}

	title, err := g.model.Complete(ctx, prompt)
	if err != nil {
		log.Debug().Err(err).Str("conversation_id", id).Msg("title generation failed")
		return false
	}

	title = strings.Trim(strings.TrimSpace(title), `"'“”‘’`)
	if title == "" {
		return false
	}

	if err := g.store.Rename(ctx, id, title); err != nil {
		log.Debug().Err(err).Str("conversation_id", id).Msg("could not store generated title")
		return false
	}

	log.Debug().Str("conversation_id", id).Str("title", title).Msg("generated conversation title")
	return true
}

func condenseForTitle(messages Conversation) string {
	if len(messages) > titleContextMessages {
		messages = messages[len(messages)-titleContextMessages:]
	}

	var sb strings.Builder
	for _, msg := range messages {
		label := "User"
		if msg.Role != RoleUser {
			label = "Assistant"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, msg.Content)
	}
	return sb.String()
}
