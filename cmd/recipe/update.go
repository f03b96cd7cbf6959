package main

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/lifecycle"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <recipe>",
	Short: "Check whether a newer version is available, without installing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		engine := lifecycle.New(cfg, log.Default())

		latest, err := engine.Update(args[0])
		if err != nil {
			return err
		}
		if latest == nil {
			fmt.Printf("%s: up to date\n", args[0])
			return nil
		}
		fmt.Printf("%s: %s available\n", args[0], *latest)
		return nil
	},
}
