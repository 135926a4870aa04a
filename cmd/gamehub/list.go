package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available games",
	Long: `Shows the native games and the browser games named in the configuration.
Browser games from a static server index appear once serve discovers them.`,
	Run: runList,
}

func runList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
	}

	type row struct{ id, kind, title string }
	var rows []row
	for _, g := range newRegistry().List() {
		rows = append(rows, row{g.ID, string(g.Kind), g.Title})
	}
	for _, g := range cfg.Browser.Games {
		title := g.Title
		if title == "" {
			title = g.ID
		}
		rows = append(rows, row{g.ID, "browser", title})
	}

	if len(rows) == 0 {
		fmt.Println("No games available.")
		return
	}

	fmt.Println(headerStyle.Render("Available games:"))
	fmt.Println()

	// Calculate column widths
	maxIDLen := 2 // "ID" header
	for _, r := range rows {
		if len(r.id) > maxIDLen {
			maxIDLen = len(r.id)
		}
	}

	fmt.Printf("  %-*s  %-7s  %s\n", maxIDLen, "ID", "Kind", "Title")
	fmt.Printf("  %-*s  %-7s  %s\n", maxIDLen, "--", "----", "-----")
	for _, r := range rows {
		fmt.Printf("  %-*s  %-7s  %s\n", maxIDLen, r.id, r.kind, r.title)
	}

	fmt.Println()
	fmt.Println("Run 'gamehub autoplay <id>' to watch the AI play.")
}
