package cmds

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tiktoken-go/tokenizer"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Count, encode and decode tokens",
}

func getCodec(model, encoding string) tokenizer.Codec {
	if encoding != "" {
		c, err := tokenizer.Get(tokenizer.Encoding(encoding))
		cobra.CheckErr(err)
		return c
	}
	if c, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return c
	}
	c, err := tokenizer.Get(tokenizer.Encoding(getDefaultEncoding(model)))
	cobra.CheckErr(err)
	return c
}

// getDefaultEncoding guesses an encoding for models the tokenizer does not
// know by name. DeepSeek counts are approximate, its real vocabulary is not
// public.
func getDefaultEncoding(model string) string {
	if strings.HasPrefix(model, "gpt-4") || strings.HasPrefix(model, "gpt-3.5-turbo") || strings.HasPrefix(model, "deepseek") {
		return "cl100k_base"
	}
	if strings.HasPrefix(model, "text-davinci-002") || strings.HasPrefix(model, "text-davinci-003") {
		return "p50k_base"
	}
	return "r50k_base"
}

func codecFromFlags(cmd *cobra.Command) tokenizer.Codec {
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("model")
	}
	encoding, _ := cmd.Flags().GetString("codec")
	return getCodec(model, encoding)
}

func gatherInput(cmd *cobra.Command, args []string) string {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		if file == "-" {
			file = "/dev/stdin"
		}
		raw, err := os.ReadFile(file)
		cobra.CheckErr(err)
		return string(raw)
	}
	if len(args) == 0 {
		cobra.CheckErr(fmt.Errorf("no input, pass text arguments or --file"))
	}
	return strings.Join(args, " ")
}

var countTokensCmd = &cobra.Command{
	Use:   "count [text...]",
	Short: "Count tokens in text, a file or a stored conversation",
	Run: func(cmd *cobra.Command, args []string) {
		codec := codecFromFlags(cmd)

		if id, _ := cmd.Flags().GetString("conversation"); id != "" {
			store, err := openStore()
			cobra.CheckErr(err)
			defer func() { _ = store.Close() }()

			record, err := store.Get(cmd.Context(), id)
			cobra.CheckErr(err)

			total := 0
			for _, msg := range record.Messages {
				ids, _, err := codec.Encode(msg.Content)
				cobra.CheckErr(err)
				total += len(ids)
				fmt.Printf("%-9s %d\n", msg.Role, len(ids))
			}
			fmt.Printf("total: %d\n", total)
			return
		}

		ids, _, err := codec.Encode(gatherInput(cmd, args))
		cobra.CheckErr(err)
		fmt.Printf("%d\n", len(ids))
	},
}

var encodeTokensCmd = &cobra.Command{
	Use:   "encode [text...]",
	Short: "Encode text into token ids",
	Run: func(cmd *cobra.Command, args []string) {
		codec := codecFromFlags(cmd)

		ids, _, err := codec.Encode(gatherInput(cmd, args))
		cobra.CheckErr(err)

		textIds := make([]string, 0, len(ids))
		for _, id := range ids {
			textIds = append(textIds, strconv.Itoa(int(id)))
		}
		fmt.Println(strings.Join(textIds, " "))
	},
}

var decodeTokensCmd = &cobra.Command{
	Use:   "decode <id>...",
	Short: "Decode token ids back into text",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		codec := codecFromFlags(cmd)

		ids := make([]uint, 0, len(args))
		for _, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("invalid token id %q", arg))
			}
			ids = append(ids, uint(id))
		}

		text, err := codec.Decode(ids)
		cobra.CheckErr(err)
		fmt.Println(text)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{countTokensCmd, encodeTokensCmd, decodeTokensCmd} {
		cmd.Flags().String("model", "", "model whose tokenizer to use (configured model by default)")
		cmd.Flags().String("codec", "", "encoding name overriding the model lookup")
	}
	countTokensCmd.Flags().String("file", "", "read input from a file, - for stdin")
	encodeTokensCmd.Flags().String("file", "", "read input from a file, - for stdin")
	countTokensCmd.Flags().String("conversation", "", "count a stored conversation instead")

	tokensCmd.AddCommand(countTokensCmd)
	tokensCmd.AddCommand(encodeTokensCmd)
	tokensCmd.AddCommand(decodeTokensCmd)
}
