package main

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/lifecycle"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <recipe>",
	Short: "Uninstall a recipe's previously installed files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		engine := lifecycle.New(cfg, log.Default())

		if err := engine.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: removed\n", args[0])
		return nil
	},
}
