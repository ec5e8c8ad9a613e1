package cmds

import (
	"fmt"

	"github.com/mb0/glob"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DannyCKL/PromptAssistant/pkg/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect system prompt templates",
}

var listPromptsCmd = &cobra.Command{
	Use:   "list [glob]",
	Short: "List available prompt templates",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := prompts.NewStore(viper.GetString("prompts-file"))
		for _, key := range store.Keys() {
			if len(args) > 0 {
				ok, err := glob.Match(args[0], key)
				cobra.CheckErr(err)
				if !ok {
					continue
				}
			}
			fmt.Printf("%s: %s\n", key, store.Get(key).Description)
		}
	},
}

var showPromptCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a template's system prompt text",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := prompts.NewStore(viper.GetString("prompts-file"))
		if !store.Has(args[0]) {
			cobra.CheckErr(fmt.Errorf("unknown prompt template %q", args[0]))
		}
		fmt.Println(store.Get(args[0]).System)
	},
}

func init() {
	promptsCmd.AddCommand(listPromptsCmd)
	promptsCmd.AddCommand(showPromptCmd)
}
