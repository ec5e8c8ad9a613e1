package main

import (
	"fmt"
	"os"

	"github.com/DannyCKL/PromptAssistant/cmd/prompt-assistant/cmds"
)

func main() {
	if err := cmds.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
