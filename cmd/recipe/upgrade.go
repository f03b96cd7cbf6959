package main

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/lifecycle"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/spf13/cobra"
)

var upgradeDefines map[string]string

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <recipe>",
	Short: "Execute the install lifecycle only if the declared version is newer than what's installed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		engine := lifecycle.New(cfg, log.Default())

		ran, err := engine.Upgrade(args[0], upgradeDefines)
		if err != nil {
			return err
		}
		if !ran {
			fmt.Printf("%s: already up to date\n", args[0])
			return nil
		}
		fmt.Printf("%s: upgraded\n", args[0])
		return nil
	},
}

func init() {
	upgradeCmd.Flags().StringToStringVar(&upgradeDefines, "define", nil, "extra NAME=VALUE scope constants for the recipe and its build-deps")
}
