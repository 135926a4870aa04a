package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/manager"
)

var (
	flagMoves   int
	flagSeed    int64
	flagURL     string
	flagQuiet   bool
	flagUser    string
	flagGames int
)

var autoplayCmd = &cobra.Command{
	Use:   "autoplay <game>",
	Short: "Let the AI play a game locally",
	Long: `Runs sessions of the game driven entirely by the AI and saves what it
learned. When a game ends before the move budget is spent, a new session
starts, up to --games sessions.

Examples:
  gamehub autoplay simple_test
  gamehub autoplay 2048 --moves 500 --games 5
  gamehub autoplay runner --url http://localhost:8080/runner/`,
	Args: cobra.ExactArgs(1),
	Run:  runAutoplay,
}

func init() {
	autoplayCmd.Flags().IntVar(&flagMoves, "moves", 100, "Total moves to play")
	autoplayCmd.Flags().IntVar(&flagGames, "games", 1, "Maximum number of sessions")
	autoplayCmd.Flags().Int64Var(&flagSeed, "seed", 0, "RNG seed (0 = random based on time)")
	autoplayCmd.Flags().StringVar(&flagURL, "url", "", "URL override for browser games")
	autoplayCmd.Flags().StringVar(&flagUser, "user", "local", "User id for the sessions")
	autoplayCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only print session summaries")
}

func runAutoplay(cmd *cobra.Command, args []string) {
	gameID := args[0]

	a, err := newApp(true)
	if err != nil {
		fail("%v", err)
	}
	defer a.close()
	if a.ai == nil {
		fail("autoplay needs the AI, remove --no-ai or enable ai in the config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mgr := a.manager()
	mgr.Start(ctx)
	if _, err := mgr.Discover(ctx); err != nil {
		a.logger.Warn("static server discovery failed", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown incomplete", "error", err)
		}
	}()

	moves := 0
	for round := 1; round <= flagGames && moves < flagMoves && ctx.Err() == nil; round++ {
		info, err := mgr.StartSession(ctx, flagUser, gameID, manager.Options{URL: flagURL, Seed: flagSeed})
		if err != nil {
			a.logger.Error("cannot start session", "game", gameID, "error", err)
			return
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("Session %d: %s (%s)", round, gameID, info.ID)))

		ended := false
		for moves < flagMoves && ctx.Err() == nil {
			sug, res, err := mgr.AutoPlay(ctx, flagUser)
			if err != nil {
				a.logger.Error("autoplay stopped", "error", err)
				break
			}
			moves++
			if !flagQuiet {
				printMove(moves, sug.Action, sug.Strategy, res)
			}
			if res.Ended() || res.Code == core.CodeEngineFailure {
				ended = true
				fmt.Printf("  game over: %s, score %d\n", res.State.EndReason, res.State.Score)
				break
			}
		}
		if !ended {
			sum, err := mgr.StopSession(context.Background(), flagUser)
			if err == nil {
				fmt.Printf("  stopped: score %d after %d actions\n", sum.FinalScore, sum.Actions)
			}
		}
	}

	stats, err := mgr.AIStats(context.Background(), gameID)
	if err == nil {
		fmt.Println()
		printAIStats(stats)
	}
}

func printMove(n int, action, strategy string, res core.ActionResult) {
	status := "ok"
	if !res.Success {
		status = res.Code
	}
	fmt.Printf("  %4d  %-12s %-12s %+5d  score %-6d %s\n", n, action, strategy, res.ScoreDelta, res.State.Score, status)
}
