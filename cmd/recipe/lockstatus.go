package main

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/lifecycle"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/levitate-os/recipe/internal/recipelock"
	"github.com/spf13/cobra"
)

var lockStatusCmd = &cobra.Command{
	Use:   "lock-status <recipe>",
	Short: "Report whether a recipe's lock sentinel is currently held",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		engine := lifecycle.New(cfg, log.Default())
		recipePath := engine.RecipePath(args[0])

		if recipelock.IsHeld(recipePath) {
			fmt.Printf("%s: locked (%s)\n", args[0], recipelock.Sentinel(recipePath))
		} else {
			fmt.Printf("%s: unlocked\n", args[0])
		}
		return nil
	},
}
