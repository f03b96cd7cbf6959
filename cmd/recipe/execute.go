package main

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/lifecycle"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/spf13/cobra"
)

var executeDefines map[string]string

var executeCmd = &cobra.Command{
	Use:     "execute <recipe>",
	Aliases: []string{"install"},
	Short:   "Run the full install lifecycle for a recipe",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		engine := lifecycle.New(cfg, log.Default())

		outcome, err := engine.Execute(args[0], executeDefines)
		if err != nil {
			return err
		}
		if outcome == lifecycle.Skipped {
			fmt.Printf("%s: already installed, skipping\n", args[0])
			return nil
		}
		fmt.Printf("%s: installed\n", args[0])
		return nil
	},
}

func init() {
	executeCmd.Flags().StringToStringVar(&executeDefines, "define", nil, "extra NAME=VALUE scope constants for the recipe and its build-deps")
}
