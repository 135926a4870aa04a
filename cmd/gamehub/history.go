package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/gamehub/internal/storage"
)

var (
	flagHistoryUser  string
	flagHistoryGame  string
	flagHistoryLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished sessions",
	Long: `Lists finished sessions, newest first. With --game, lists the best
sessions of that game instead.

Examples:
  gamehub history
  gamehub history --user alice --limit 20
  gamehub history --game 2048`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&flagHistoryUser, "user", "", "Only sessions of this user")
	historyCmd.Flags().StringVar(&flagHistoryGame, "game", "", "Top sessions of this game")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 10, "Number of sessions to show")
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		fail("opening database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	var list []storage.SessionSummary
	title := "Recent sessions"
	if flagHistoryGame != "" {
		title = "Top sessions - " + flagHistoryGame
		list, err = store.TopSessions(ctx, flagHistoryGame, flagHistoryLimit)
	} else {
		list, err = store.RecentSessions(ctx, flagHistoryUser, flagHistoryLimit)
	}
	if err != nil {
		store.Close()
		fail("retrieving sessions: %v", err)
	}

	fmt.Println(headerStyle.Render(title))
	fmt.Println()

	if len(list) == 0 {
		fmt.Println("No sessions recorded yet.")
		return
	}

	fmt.Printf("  %-16s  %-10s  %-12s  %-7s  %-7s  %s\n", "Ended", "User", "Game", "Score", "Actions", "Reason")
	fmt.Printf("  %-16s  %-10s  %-12s  %-7s  %-7s  %s\n", "-----", "----", "----", "-----", "-------", "------")
	for _, s := range list {
		reason := s.Reason
		if s.Leaked {
			reason += " (leaked)"
		}
		fmt.Printf("  %-16s  %-10s  %-12s  %-7d  %-7d  %s\n",
			s.EndedAt.Format("2006-01-02 15:04"), s.UserID, s.GameID, s.FinalScore, s.Actions, reason)
	}
}
