// gamehub hosts game sessions for chat users, learns to play them with a
// tabular Q-learning AI, and drives browser-hosted games through a headless
// browser.
//
// Usage:
//
//	gamehub list                 - List available games
//	gamehub serve                - Start the SSH console
//	gamehub autoplay <game>      - Let the AI play a game locally
//	gamehub stats [game]         - Show AI and session statistics
//	gamehub history              - Show finished sessions
//
// Global flags:
//
//	--config <path>  - Configuration file (default: search order)
//	--db <path>      - Database path (default: from config)
//	--log-level <l>  - debug, info, warn or error
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagLogLevel string
	flagNoAI     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gamehub",
	Short: "Game hub - play sessions with an adaptive AI",
	Long: `Game hub runs game sessions for users, one game per user at a time.
Native games run in-process; browser games run in a headless Chromium page.
An AI learns from every action and can suggest or take the next move.

Available commands:
  list      - Show all available games
  serve     - Start the SSH console
  autoplay  - Let the AI play a game locally
  stats     - Show what the AI learned and session statistics
  history   - Show finished sessions

Examples:
  gamehub list
  gamehub serve --ssh :2222
  gamehub autoplay simple_test --moves 200
  gamehub stats 2048
  gamehub history --user alice`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to database (overrides storage.db_path)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (overrides logging.level)")
	rootCmd.PersistentFlags().BoolVar(&flagNoAI, "no-ai", false, "Disable the game AI")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(autoplayCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
}
