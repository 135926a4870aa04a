package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/gamehub/internal/gameai"
)

var statsCmd = &cobra.Command{
	Use:   "stats [game]",
	Short: "Show AI and session statistics",
	Long: `Display what the AI has learned for each game (or one game) and the
aggregates of finished sessions recorded in the database.

Examples:
  gamehub stats
  gamehub stats simple_test`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	a, err := newApp(false)
	if err != nil {
		fail("%v", err)
	}
	defer a.close()

	ids := make([]string, 0)
	if len(args) == 1 {
		ids = append(ids, args[0])
	} else {
		for _, g := range a.reg.List() {
			ids = append(ids, g.ID)
		}
		for _, g := range a.cfg.Browser.Games {
			ids = append(ids, g.ID)
		}
	}

	ctx := context.Background()
	for i, id := range ids {
		if i > 0 {
			fmt.Println()
		}
		if a.ai != nil {
			printAIStats(a.ai.Stats(ctx, id))
		} else {
			fmt.Println(headerStyle.Render("Game: " + id))
		}
		if a.store == nil {
			continue
		}
		gs, err := a.store.GetGameStats(ctx, id)
		if err != nil {
			a.logger.Warn("session stats unavailable", "game", id, "error", err)
			continue
		}
		if gs.Sessions == 0 {
			fmt.Println("  No sessions recorded yet.")
			continue
		}
		fmt.Printf("  Sessions: %d  High score: %d  Avg score: %.1f  Actions: %d\n",
			gs.Sessions, gs.HighScore, gs.AvgScore, gs.TotalActions)
		fmt.Printf("  Last played: %s\n", gs.LastPlayed.Format("2006-01-02 15:04"))
	}
}

func printAIStats(st gameai.AggregateStats) {
	fmt.Println(headerStyle.Render("AI model: " + st.GameID))
	fmt.Printf("  Games: %d  Actions: %d  States: %d\n", st.TotalGames, st.TotalActions, st.States)
	fmt.Printf("  Average score: %.1f  Best: %d  Exploration: %.3f\n", st.AverageScore, st.BestScore, st.ExplorationRate)
}
