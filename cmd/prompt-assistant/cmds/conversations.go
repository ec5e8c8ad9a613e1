package cmds

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/mb0/glob"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/parse"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
}

var listConversationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		records, err := store.List(cmd.Context())
		cobra.CheckErr(err)

		filter, _ := cmd.Flags().GetString("filter")
		for _, record := range records {
			if filter != "" {
				ok, err := glob.Match(filter, record.Title)
				cobra.CheckErr(err)
				if !ok {
					continue
				}
			}
			fmt.Printf("%s  %-30q  %d messages  +%d/-%d  %s\n",
				record.ID, record.Title, len(record.Messages),
				record.Likes, record.Dislikes,
				record.UpdatedAt.Format("2006-01-02 15:04"))
		}
	},
}

var showConversationCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		record, err := store.Get(cmd.Context(), args[0])
		cobra.CheckErr(err)

		fmt.Printf("%s (%s)\n", record.Title, record.ID)
		fmt.Printf("created %s, updated %s, +%d/-%d\n\n",
			record.CreatedAt.Format("2006-01-02 15:04"),
			record.UpdatedAt.Format("2006-01-02 15:04"),
			record.Likes, record.Dislikes)
		for _, msg := range record.Messages {
			fmt.Println(msg.View())
		}
	},
}

var renameConversationCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		title := strings.Join(args[1:], " ")
		cobra.CheckErr(store.Rename(cmd.Context(), args[0], title))
		fmt.Printf("renamed %s to %q\n", args[0], title)
	},
}

var deleteConversationCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		record, err := store.Get(cmd.Context(), args[0])
		cobra.CheckErr(err)

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			ui := &input.UI{
				Writer: os.Stdout,
				Reader: os.Stdin,
			}
			answer, err := ui.Ask(fmt.Sprintf("Delete %q? [y/n]", record.Title), &input.Options{
				Default:  "n",
				Required: true,
				Loop:     true,
				ValidateFunc: func(answer string) error {
					switch answer {
					case "y", "Y", "n", "N":
						return nil
					default:
						return fmt.Errorf("please enter 'y' or 'n'")
					}
				},
			})
			cobra.CheckErr(err)
			if answer == "n" || answer == "N" {
				fmt.Println("aborted")
				return
			}
		}

		cobra.CheckErr(store.Delete(cmd.Context(), args[0]))
		fmt.Printf("deleted %s\n", args[0])
	},
}

var likeConversationCmd = &cobra.Command{
	Use:   "like <id>",
	Short: "Bump a conversation's like counter",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		cobra.CheckErr(store.Like(cmd.Context(), args[0]))
		record, err := store.Get(cmd.Context(), args[0])
		cobra.CheckErr(err)
		fmt.Printf("+%d/-%d\n", record.Likes, record.Dislikes)
	},
}

var dislikeConversationCmd = &cobra.Command{
	Use:   "dislike <id>",
	Short: "Bump a conversation's dislike counter",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		cobra.CheckErr(store.Dislike(cmd.Context(), args[0]))
		record, err := store.Get(cmd.Context(), args[0])
		cobra.CheckErr(err)
		fmt.Printf("+%d/-%d\n", record.Likes, record.Dislikes)
	},
}

const defaultExportTemplate = `# {{ .Title }}

- created: {{ .CreatedAt }}
- updated: {{ .UpdatedAt }}
- feedback: +{{ .Likes }}/-{{ .Dislikes }}

{{ range .Messages }}## {{ .Role | title }}

{{ .Content }}

{{ end }}`

type exportMessage struct {
	Role    string
	Content string
	Time    string
}

type exportData struct {
	ID        string
	Title     string
	CreatedAt string
	UpdatedAt string
	Likes     int
	Dislikes  int
	Messages  []exportMessage
}

var exportConversationCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Render a conversation through a template (markdown by default)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		record, err := store.Get(cmd.Context(), args[0])
		cobra.CheckErr(err)

		templateText := defaultExportTemplate
		if templateFile, _ := cmd.Flags().GetString("template"); templateFile != "" {
			raw, err := os.ReadFile(templateFile)
			cobra.CheckErr(err)
			templateText = string(raw)
		}

		t, err := template.New("export").Funcs(sprig.FuncMap()).Parse(templateText)
		cobra.CheckErr(err)

		data := exportData{
			ID:        record.ID,
			Title:     record.Title,
			CreatedAt: record.CreatedAt.Format("2006-01-02 15:04"),
			UpdatedAt: record.UpdatedAt.Format("2006-01-02 15:04"),
			Likes:     record.Likes,
			Dislikes:  record.Dislikes,
		}
		for _, msg := range record.Messages {
			data.Messages = append(data.Messages, exportMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
				Time:    msg.Time.Format("2006-01-02 15:04"),
			})
		}

		out := os.Stdout
		if outputFile, _ := cmd.Flags().GetString("output"); outputFile != "" {
			f, err := os.Create(outputFile)
			cobra.CheckErr(err)
			defer func() { _ = f.Close() }()
			out = f
		}

		cobra.CheckErr(t.Execute(out, data))
	},
}

var extractConversationCmd = &cobra.Command{
	Use:   "extract <id>",
	Short: "Extract fenced code blocks from the assistant messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = store.Close() }()

		record, err := store.Get(cmd.Context(), args[0])
		cobra.CheckErr(err)

		language, _ := cmd.Flags().GetString("language")
		for _, msg := range record.Messages {
			if msg.Role != conversation.RoleAssistant {
				continue
			}
			blocks, err := parse.ExtractCodeBlocks(msg.Content)
			cobra.CheckErr(err)
			for _, block := range blocks {
				if language != "" && !strings.EqualFold(block.Language, language) {
					continue
				}
				fmt.Printf("```%s\n%s```\n\n", block.Language, block.Code)
			}
		}
	},
}

func init() {
	listConversationsCmd.Flags().String("filter", "", "glob filter on conversation titles")
	deleteConversationCmd.Flags().Bool("force", false, "skip the confirmation prompt")
	exportConversationCmd.Flags().String("template", "", "template file overriding the built-in markdown layout")
	exportConversationCmd.Flags().String("output", "", "write to a file instead of stdout")
	extractConversationCmd.Flags().String("language", "", "only blocks fenced with this language")

	conversationsCmd.AddCommand(listConversationsCmd)
	conversationsCmd.AddCommand(showConversationCmd)
	conversationsCmd.AddCommand(renameConversationCmd)
	conversationsCmd.AddCommand(deleteConversationCmd)
	conversationsCmd.AddCommand(likeConversationCmd)
	conversationsCmd.AddCommand(dislikeConversationCmd)
	conversationsCmd.AddCommand(exportConversationCmd)
	conversationsCmd.AddCommand(extractConversationCmd)
}
