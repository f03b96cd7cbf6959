package main

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/llm"
	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/levitate-os/recipe/internal/userconfig"
	"github.com/spf13/cobra"
)

// llmTestCmd is a diagnostic: it resolves the configured provider CLI
// from llm.toml and runs one tiny prompt through it, surfacing config,
// spawn, and timeout failures without requiring a recipe that calls
// llm_extract.
var llmTestCmd = &cobra.Command{
	Use:   "llm-test",
	Short: "Pipe a one-line prompt through the configured LLM provider CLI and print the response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userCfg, err := userconfig.Load()
		if err != nil {
			return rerr.Wrap(rerr.IoError, "loading configuration", err)
		}
		if !userCfg.LLMEnabled() {
			return rerr.New(rerr.LlmError, "LLM helpers are disabled via configuration (llm.enabled = false)")
		}

		bridge, err := llm.NewBridge(llm.DefaultProfile())
		if err != nil {
			return rerr.Wrap(rerr.LlmError, "resolving LLM configuration", err)
		}

		resp, err := bridge.Run("Reply with exactly one word: ok")
		if err != nil {
			return err
		}

		fmt.Printf("provider: %s\nresponse: %s\n", bridge.Provider(), resp)
		return nil
	},
}
