// Command recipe drives the lifecycle engine from the shell: execute,
// remove, update, upgrade, hash, and lock-status each map to one engine
// entry point, streaming helper/shell output to stderr so stdout stays
// machine-readable for scripted callers.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/levitate-os/recipe/internal/buildinfo"
	"github.com/levitate-os/recipe/internal/config"
	"github.com/levitate-os/recipe/internal/errmsg"
	"github.com/levitate-os/recipe/internal/llm"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/spf13/cobra"
)

var (
	quietFlag      bool
	verboseFlag    bool
	debugFlag      bool
	llmProfileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "recipe",
	Short: "A recipe-driven package lifecycle engine",
	Long: `recipe executes user-authored Starlark recipes to acquire, build,
install, upgrade, and remove software packages into a user-controlled
installation prefix.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output")
	rootCmd.PersistentFlags().StringVar(&llmProfileFlag, "llm-profile", "", "Named llm.toml profile for the llm_* helpers")
	rootCmd.PersistentPreRun = initRun
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(lockStatusCmd)
	rootCmd.AddCommand(llmTestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(exitCodeFor(err))
	}
}

// formatError renders a recipe error with errmsg's actionable suggestions
// when the error carries a *rerr.RecipeError, falling back to Error().
func formatError(err error) string {
	return errmsg.Format(err, nil)
}

// exitCodeFor maps an error to the exit code its Kind is assigned, or 1
// for anything else.
func exitCodeFor(err error) int {
	re, ok := rerr.As(err)
	if !ok {
		return 1
	}
	return rerr.ExitCode(re.Kind)
}

func initRun(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
	llm.SetDefaultProfile(llmProfileFlag)
}

func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}
	if isTruthy(os.Getenv("RECIPE_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("RECIPE_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("RECIPE_QUIET")) {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// loadConfig resolves engine directories and ensures they exist, exiting
// with status 1 on failure since no subcommand can proceed without them.
func loadConfig() *config.Config {
	cfg, err := config.DefaultConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "preparing directories: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
