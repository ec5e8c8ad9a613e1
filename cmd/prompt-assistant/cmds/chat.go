package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/events"
	"github.com/DannyCKL/PromptAssistant/pkg/inference"
	"github.com/DannyCKL/PromptAssistant/pkg/inference/factory"
	"github.com/DannyCKL/PromptAssistant/pkg/prompts"
	"github.com/DannyCKL/PromptAssistant/pkg/session"
	"github.com/DannyCKL/PromptAssistant/pkg/settings"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `chat opens an interactive session against the configured endpoint. The most
recently updated conversation is resumed, or a fresh one is created.

Inside the session, slash commands control conversations and settings.
Type /help for the full list.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settings_, err := loadSettings()
	if err != nil {
		return err
	}
	if err := settings_.Validate(); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close conversation store")
		}
	}()

	promptStore := prompts.NewStore(viper.GetString("prompts-file"))

	router, err := events.NewEventRouter()
	if err != nil {
		return errors.Wrap(err, "could not create event router")
	}
	defer func() {
		if err := router.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close event router")
		}
	}()

	sink := inference.NewWatermillSink(router.Publisher, "chat")
	if viper.GetBool("raw-events") {
		router.AddHandler("raw-events-stdout", "chat", router.DumpRawEvents)
	} else {
		router.AddHandler("chat-printer", "chat", events.StepPrinterFunc("", os.Stdout))
	}

	engineFactory := factory.NewStandardEngineFactory()
	engine, err := engineFactory.CreateEngine(settings_, inference.WithSink(sink))
	if err != nil {
		return err
	}
	titleEngine, err := engineFactory.CreateEngine(settings_.ForTitleGeneration())
	if err != nil {
		return err
	}

	chatSession := session.NewSession(store, engine,
		session.WithSystemPrompt(promptStore.Get(prompts.DefaultKey).System),
		session.WithTitleGenerator(conversation.NewTitleGenerator(store, inference.NewTitleModel(titleEngine))),
	)

	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	var active *conversation.Record
	if len(records) > 0 {
		active, err = chatSession.Select(ctx, records[0].ID)
	} else {
		active, err = chatSession.New(ctx)
	}
	if err != nil {
		return err
	}

	loop := &chatLoop{
		session:   chatSession,
		store:     store,
		prompts:   promptStore,
		settings:  settings_,
		promptKey: prompts.DefaultKey,
		out:       os.Stdout,
		rebuild: func() error {
			engine, err := engineFactory.CreateEngine(settings_, inference.WithSink(sink))
			if err != nil {
				return err
			}
			titleEngine, err := engineFactory.CreateEngine(settings_.ForTitleGeneration())
			if err != nil {
				return err
			}
			chatSession.SetEngine(engine)
			chatSession.SetTitleGenerator(conversation.NewTitleGenerator(store, inference.NewTitleModel(titleEngine)))
			return nil
		},
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		defer cancel()
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return loop.run(ctx, active)
	})

	err = eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// chatLoop drives the interactive session: plain lines are sent to the model,
// slash commands manipulate conversations and settings.
type chatLoop struct {
	session   *session.Session
	store     conversation.Store
	prompts   *prompts.Store
	settings  *settings.Settings
	promptKey string
	out       io.Writer
	rebuild   func() error
}

func (l *chatLoop) run(ctx context.Context, active *conversation.Record) error {
	fmt.Fprintf(l.out, "prompt-assistant (%s, model %s)\n", l.settings.API, l.settings.Chat.Model)
	fmt.Fprintf(l.out, "conversation: %s (%s)\n", active.Title, active.ID)
	fmt.Fprintf(l.out, "type a message, or /help for commands\n")
	l.printHistory()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(l.out, "\n> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(l.out)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := l.handleCommand(ctx, line)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				fmt.Fprintf(l.out, "error: %s\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if _, err := l.session.Send(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(l.out, "error: %s\n", err)
		}
	}
}

func (l *chatLoop) handleCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	command := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, command))

	switch command {
	case "/help":
		l.printHelp()

	case "/quit", "/exit":
		return true, nil

	case "/new":
		record, err := l.session.New(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "started %s (%s)\n", record.Title, record.ID)

	case "/list":
		records, err := l.store.List(ctx)
		if err != nil {
			return false, err
		}
		l.printRecords(records)

	case "/select":
		if rest == "" {
			return false, errors.New("usage: /select <id>")
		}
		record, err := l.session.Select(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "switched to %s (%s)\n", record.Title, record.ID)
		l.printHistory()

	case "/rename":
		if rest == "" {
			return false, errors.New("usage: /rename <title>")
		}
		if err := l.session.Rename(ctx, rest); err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "renamed to %q\n", rest)

	case "/delete":
		id := rest
		if id == "" {
			id = l.session.ActiveID()
		}
		replacement, err := l.session.DeleteConversation(ctx, id)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "deleted %s\n", id)
		if replacement != nil {
			fmt.Fprintf(l.out, "started %s (%s)\n", replacement.Title, replacement.ID)
		}

	case "/retry":
		if _, err := l.session.Retry(ctx); err != nil {
			return false, err
		}

	case "/edit":
		if rest == "" {
			return false, errors.New("usage: /edit <replacement text>")
		}
		if _, err := l.session.Edit(ctx, rest); err != nil {
			return false, err
		}

	case "/undo":
		l.session.Undo()
		l.printHistory()

	case "/like":
		if err := l.session.Like(ctx); err != nil {
			return false, err
		}
		l.printFeedback(ctx)

	case "/dislike":
		if err := l.session.Dislike(ctx); err != nil {
			return false, err
		}
		l.printFeedback(ctx)

	case "/prompt":
		if rest == "" {
			for _, key := range l.prompts.Keys() {
				marker := " "
				if key == l.promptKey {
					marker = "*"
				}
				fmt.Fprintf(l.out, "%s %s: %s\n", marker, key, l.prompts.Get(key).Description)
			}
			break
		}
		if !l.prompts.Has(rest) {
			return false, errors.Errorf("unknown prompt template %q, try /prompt", rest)
		}
		l.promptKey = rest
		l.session.SetSystemPrompt(l.prompts.Get(rest).System)
		fmt.Fprintf(l.out, "system prompt set to %q\n", rest)

	case "/model":
		if rest == "" {
			fmt.Fprintf(l.out, "model: %s\n", l.settings.Chat.Model)
			break
		}
		l.settings.Chat.Model = rest
		if err := l.rebuild(); err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "model set to %s\n", rest)

	case "/stream":
		l.settings.Chat.Stream = !l.settings.Chat.Stream
		if err := l.rebuild(); err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "streaming: %v\n", l.settings.Chat.Stream)

	case "/history":
		l.printHistory()

	default:
		return false, errors.Errorf("unknown command %q, try /help", command)
	}

	return false, nil
}

func (l *chatLoop) printHelp() {
	fmt.Fprint(l.out, `commands:
  /retry              regenerate the last reply
  /edit <text>        replace the last message and regenerate
  /undo               step back to the previous state
  /like, /dislike     rate the active conversation
  /new                start a fresh conversation
  /list               list conversations
  /select <id>        switch conversation
  /rename <title>     rename the active conversation
  /delete [id]        delete a conversation (active one by default)
  /prompt [key]       list or switch system prompt templates
  /model [name]       show or switch the model
  /stream             toggle streaming
  /history            reprint the active conversation
  /quit               leave
`)
}

func (l *chatLoop) printHistory() {
	history := l.session.History()
	if len(history) == 0 {
		return
	}
	fmt.Fprintln(l.out)
	for _, msg := range history {
		fmt.Fprintln(l.out, msg.View())
	}
}

func (l *chatLoop) printRecords(records []*conversation.Record) {
	activeID := l.session.ActiveID()
	for _, record := range records {
		marker := " "
		if record.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(l.out, "%s %s  %-30q  %d messages  +%d/-%d  %s\n",
			marker, record.ID, record.Title, len(record.Messages),
			record.Likes, record.Dislikes,
			record.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func (l *chatLoop) printFeedback(ctx context.Context) {
	record, err := l.store.Get(ctx, l.session.ActiveID())
	if err != nil {
		return
	}
	fmt.Fprintf(l.out, "+%d/-%d\n", record.Likes, record.Dislikes)
}
