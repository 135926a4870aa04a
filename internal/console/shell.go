package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
	"github.com/vovakirdan/gamehub/internal/gameai"
	"github.com/vovakirdan/gamehub/internal/manager"
	"github.com/vovakirdan/gamehub/internal/registry"
	"github.com/vovakirdan/gamehub/internal/session"
	"github.com/vovakirdan/gamehub/internal/storage"
)

// MaxAutoMoves caps a single "auto" command.
const MaxAutoMoves = 50

// Backend is the part of the session manager the console drives.
type Backend interface {
	ListGames() []registry.GameDefinition
	StartSession(ctx context.Context, userID, gameID string, opts manager.Options) (session.Info, error)
	SubmitAction(ctx context.Context, userID, action string, data core.ActionData) (core.ActionResult, error)
	Suggest(ctx context.Context, userID string) (gameai.Suggestion, error)
	AutoPlay(ctx context.Context, userID string) (gameai.Suggestion, core.ActionResult, error)
	Pause(userID string) error
	Resume(userID string) error
	StopSession(ctx context.Context, userID string) (game.Summary, error)
	Session(userID string) (session.Info, error)
	History(userID string) ([]core.ActionRecord, error)
	Status() manager.Status
	AIStats(ctx context.Context, gameID string) (gameai.AggregateStats, error)
}

// HistorySource lists finished sessions. Optional.
type HistorySource interface {
	RecentSessions(ctx context.Context, userID string, limit int) ([]storage.SessionSummary, error)
}

var _ Backend = (*manager.Manager)(nil)

// Shell turns command lines into backend calls and formats the replies.
type Shell struct {
	backend Backend
	history HistorySource

	title lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

// NewShell creates a shell. history may be nil; r may be nil for the default
// renderer.
func NewShell(backend Backend, history HistorySource, r *lipgloss.Renderer) *Shell {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return &Shell{
		backend: backend,
		history: history,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("203")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Parse splits a command line into a lowercase command name and its arguments.
func Parse(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// ParseData converts key=value arguments into action data. Integers, floats
// and booleans are converted; everything else stays a string.
func ParseData(args []string) (core.ActionData, error) {
	if len(args) == 0 {
		return nil, nil
	}
	data := make(core.ActionData, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		data[key] = scalar(raw)
	}
	return data, nil
}

func scalar(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// Execute runs one command line for userID. The second result is true when
// the user asked to leave.
func (sh *Shell) Execute(ctx context.Context, userID, line string) (string, bool) {
	name, args := Parse(line)
	switch name {
	case "":
		return "", false
	case "quit", "exit":
		return "bye", true
	case "help":
		return sh.help(), false
	case "games":
		return sh.games(), false
	case "start":
		return sh.start(ctx, userID, args), false
	case "do":
		return sh.do(ctx, userID, args), false
	case "hint":
		return sh.hint(ctx, userID), false
	case "auto":
		return sh.auto(ctx, userID, args), false
	case "pause":
		return sh.reply("paused", sh.backend.Pause(userID)), false
	case "resume":
		return sh.reply("resumed", sh.backend.Resume(userID)), false
	case "stop":
		return sh.stop(ctx, userID), false
	case "status":
		return sh.status(userID), false
	case "stats":
		return sh.stats(ctx, userID, args), false
	case "history":
		return sh.actions(userID, args), false
	case "recent":
		return sh.recent(ctx, userID, args), false
	default:
		return sh.bad.Render(fmt.Sprintf("unknown command %q, try help", name)), false
	}
}

func (sh *Shell) help() string {
	var b strings.Builder
	b.WriteString(sh.title.Render("Commands") + "\n")
	for _, l := range [][2]string{
		{"games", "list available games"},
		{"start <game> [url]", "start a session"},
		{"do <action> [k=v ...]", "submit an action"},
		{"hint", "ask the AI for the next action"},
		{"auto [n]", "let the AI play n moves"},
		{"pause | resume", "pause or resume the game"},
		{"stop", "end the session"},
		{"status", "show the current game"},
		{"stats [game]", "show what the AI learned"},
		{"history [n]", "show recent actions of this session"},
		{"recent [n]", "show your finished sessions"},
		{"quit", "leave the console"},
	} {
		fmt.Fprintf(&b, "  %-22s %s\n", l[0], sh.dim.Render(l[1]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (sh *Shell) games() string {
	games := sh.backend.ListGames()
	if len(games) == 0 {
		return "No games available."
	}

	maxIDLen := 2
	for _, g := range games {
		if len(g.ID) > maxIDLen {
			maxIDLen = len(g.ID)
		}
	}

	var b strings.Builder
	b.WriteString(sh.title.Render("Available games") + "\n")
	fmt.Fprintf(&b, "  %-*s  %-7s  %s\n", maxIDLen, "ID", "Kind", "Title")
	for _, g := range games {
		fmt.Fprintf(&b, "  %-*s  %-7s  %s\n", maxIDLen, g.ID, g.Kind, g.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (sh *Shell) start(ctx context.Context, userID string, args []string) string {
	if len(args) == 0 {
		return sh.bad.Render("usage: start <game> [url]")
	}
	opts := manager.Options{}
	if len(args) > 1 {
		opts.URL = args[1]
	}
	info, err := sh.backend.StartSession(ctx, userID, args[0], opts)
	if err != nil {
		return sh.failure(err)
	}
	return fmt.Sprintf("started %s (session %s), lives %d", info.GameID, info.ID, info.State.Lives)
}

func (sh *Shell) do(ctx context.Context, userID string, args []string) string {
	if len(args) == 0 {
		return sh.bad.Render("usage: do <action> [k=v ...]")
	}
	data, err := ParseData(args[1:])
	if err != nil {
		return sh.bad.Render(err.Error())
	}
	res, err := sh.backend.SubmitAction(ctx, userID, args[0], data)
	if err != nil {
		return sh.failure(err)
	}
	return sh.result(args[0], res)
}

func (sh *Shell) result(action string, res core.ActionResult) string {
	var line string
	if res.Success {
		line = fmt.Sprintf("%s: %+d, score %d", action, res.ScoreDelta, res.State.Score)
		if res.Message != "" {
			line += " (" + res.Message + ")"
		}
	} else {
		line = sh.bad.Render(fmt.Sprintf("%s rejected [%s]: %s", action, res.Code, res.Message))
	}
	if res.Ended() {
		line += "\n" + sh.title.Render(fmt.Sprintf("game over: %s, final score %d", res.State.EndReason, res.State.Score))
	}
	return line
}

func (sh *Shell) hint(ctx context.Context, userID string) string {
	sug, err := sh.backend.Suggest(ctx, userID)
	if err != nil {
		return sh.failure(err)
	}
	return fmt.Sprintf("try %q (%s, confidence %.2f)", sug.Action, sug.Strategy, sug.Confidence)
}

func (sh *Shell) auto(ctx context.Context, userID string, args []string) string {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return sh.bad.Render("usage: auto [n]")
		}
		n = min(v, MaxAutoMoves)
	}

	var lines []string
	for i := 0; i < n; i++ {
		sug, res, err := sh.backend.AutoPlay(ctx, userID)
		if err != nil {
			lines = append(lines, sh.failure(err))
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s", sh.dim.Render("["+sug.Strategy+"]"), sh.result(sug.Action, res)))
		if res.Ended() || res.Code == core.CodeEngineFailure {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func (sh *Shell) stop(ctx context.Context, userID string) string {
	sum, err := sh.backend.StopSession(ctx, userID)
	if err != nil {
		return sh.failure(err)
	}
	return fmt.Sprintf("stopped %s: score %d, %d actions (%.0f%% ok), %s",
		sum.GameID, sum.FinalScore, sum.Actions, sum.SuccessRate*100, sum.Duration.Round(time.Second))
}

func (sh *Shell) status(userID string) string {
	st := sh.backend.Status()
	header := sh.dim.Render(fmt.Sprintf("sessions %d/%d, browser ready %t, ai ready %t",
		st.ActiveSessions, st.MaxSessions, st.EngineReady, st.AIReady))

	info, err := sh.backend.Session(userID)
	if err != nil {
		return header + "\nno active session"
	}

	var b strings.Builder
	b.WriteString(header + "\n")
	fmt.Fprintf(&b, "%s  %s\n", sh.title.Render(info.GameID), info.Phase)
	fmt.Fprintf(&b, "  score %d  level %d  lives %d  actions %d\n",
		info.State.Score, info.State.Level, info.State.Lives, info.State.ActionCount)
	keys := make([]string, 0, len(info.State.Fields))
	for k := range info.State.Fields {
		if k == "screenshot" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s=%v\n", k, info.State.Fields[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (sh *Shell) stats(ctx context.Context, userID string, args []string) string {
	gameID := ""
	if len(args) > 0 {
		gameID = args[0]
	} else if info, err := sh.backend.Session(userID); err == nil {
		gameID = info.GameID
	}
	if gameID == "" {
		return sh.bad.Render("usage: stats <game>")
	}

	st, err := sh.backend.AIStats(ctx, gameID)
	if err != nil {
		return sh.failure(err)
	}
	return fmt.Sprintf("%s\n  games %d  actions %d  states %d\n  average score %.1f  best %d  exploration %.3f",
		sh.title.Render("AI stats: "+gameID),
		st.TotalGames, st.TotalActions, st.States, st.AverageScore, st.BestScore, st.ExplorationRate)
}

func (sh *Shell) actions(userID string, args []string) string {
	n := limitArg(args, 10)
	recs, err := sh.backend.History(userID)
	if err != nil {
		return sh.failure(err)
	}
	if len(recs) == 0 {
		return "no actions yet"
	}
	if len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		mark := "ok"
		if !r.Result.Success {
			mark = r.Result.Code
		}
		lines = append(lines, fmt.Sprintf("  %s  %-10s %+4d  %s", r.Timestamp.Format("15:04:05"), r.Action, r.Result.ScoreDelta, mark))
	}
	return strings.Join(lines, "\n")
}

func (sh *Shell) recent(ctx context.Context, userID string, args []string) string {
	if sh.history == nil {
		return sh.bad.Render("history is not recorded on this server")
	}
	list, err := sh.history.RecentSessions(ctx, userID, limitArg(args, 10))
	if err != nil {
		return sh.failure(err)
	}
	if len(list) == 0 {
		return "no finished sessions"
	}
	lines := []string{sh.title.Render("Recent sessions")}
	for _, s := range list {
		lines = append(lines, fmt.Sprintf("  %s  %-12s %6d  %s",
			s.EndedAt.Format("2006-01-02 15:04"), s.GameID, s.FinalScore, s.Reason))
	}
	return strings.Join(lines, "\n")
}

func (sh *Shell) reply(ok string, err error) string {
	if err != nil {
		return sh.failure(err)
	}
	return ok
}

// failure renders err with a hint for the common cases.
func (sh *Shell) failure(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		msg = "no active session, use start <game>"
	case errors.Is(err, core.ErrUserAlreadyPlaying):
		msg = "you already have a game running, stop it first"
	case errors.Is(err, core.ErrGameNotFound):
		msg = "unknown game, see games"
	case errors.Is(err, core.ErrSessionLimitReached):
		msg = "the server is full, try again later"
	case errors.Is(err, manager.ErrAIDisabled):
		msg = "the AI is disabled on this server"
	}
	return sh.bad.Render(msg)
}

func limitArg(args []string, def int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return def
	}
	return n
}
