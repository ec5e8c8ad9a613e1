package cmds

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/settings"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "prompt-assistant",
	Short: "Chat with DeepSeek-style models, with reasoning display and a local conversation store",
	Long: `prompt-assistant talks to OpenAI-compatible chat endpoints (DeepSeek by
default) or a local ollama server. Replies stream with the model's reasoning
shown separately, and every conversation is kept in a local JSON index with
like/dislike counters and AI-generated titles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default prompt-assistant.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage-dir", "conversations", "directory holding the conversation index")
	rootCmd.PersistentFlags().String("prompts-file", "prompts.yaml", "prompt template file")
	rootCmd.PersistentFlags().String("api-type", string(settings.APITypeOpenAI), "api type (openai, ollama)")
	rootCmd.PersistentFlags().String("api-key", "", "api key for the endpoint")
	rootCmd.PersistentFlags().String("base-url", settings.DefaultBaseURL, "base url of the endpoint")
	rootCmd.PersistentFlags().String("model", settings.DefaultModel, "model to use")
	rootCmd.PersistentFlags().Duration("timeout", settings.DefaultTimeout, "request timeout")
	rootCmd.PersistentFlags().Bool("stream", true, "stream responses")
	rootCmd.PersistentFlags().String("user", settings.DefaultUser, "user tag sent with every request")
	rootCmd.PersistentFlags().String("ollama-host", settings.DefaultOllamaHost, "ollama server address")
	rootCmd.PersistentFlags().Bool("raw-events", false, "dump raw inference events instead of rendering them")

	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))

	viper.SetEnvPrefix("PROMPT_ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(tokensCmd)
}

func initConfig() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("prompt-assistant")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config"))
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "could not read config file")
	}
	log.Debug().Str("config", viper.ConfigFileUsed()).Msg("loaded config file")
	return nil
}

func initLogging() error {
	levelString := viper.GetString("log-level")
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", levelString)
	}
	zerolog.SetGlobalLevel(level)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		})
	}
	return nil
}

// loadSettings resolves engine settings from flags, environment and config
// file. OPENAI_API_KEY is honored as a fallback key source.
func loadSettings() (*settings.Settings, error) {
	ret, err := settings.NewSettingsFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if ret.Client.APIKey == "" {
		ret.Client.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return ret, nil
}

func indexPath() string {
	return filepath.Join(viper.GetString("storage-dir"), "index.json")
}

func openStore() (conversation.Store, error) {
	return conversation.NewJSONFileStore(indexPath())
}
