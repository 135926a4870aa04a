package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/gamehub/internal/gameai"
	"github.com/vovakirdan/gamehub/internal/manager"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Check that the file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := store.InsertSession(ctx, SessionSummary{SessionID: "s1", UserID: "u", GameID: "g", Reason: "manual"}); err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}
	store.Close()

	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer store.Close()

	got, err := store.RecentSessions(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentSessions() failed: %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "s1" {
		t.Fatalf("sessions after reopen = %+v", got)
	}
}

func TestSaveSessionSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	rec := manager.SessionRecord{
		SessionID:  "abc",
		UserID:     "alice",
		GameID:     "simple_test",
		Reason:     "scoreLimit",
		FinalScore: 100,
		BestScore:  100,
		Level:      1,
		Actions:    12,
		Succeeded:  11,
		Failed:     1,
		Duration:   90 * time.Second,
		Leaked:     true,
		StartedAt:  start,
		EndedAt:    start.Add(90 * time.Second),
	}
	if err := store.SaveSessionSummary(ctx, rec); err != nil {
		t.Fatalf("SaveSessionSummary() failed: %v", err)
	}

	got, err := store.RecentSessions(ctx, "alice", 5)
	if err != nil {
		t.Fatalf("RecentSessions() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}
	s := got[0]
	if s.FinalScore != 100 || s.Actions != 12 || s.Failed != 1 || !s.Leaked {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Duration != 90*time.Second {
		t.Errorf("duration = %v, want 90s", s.Duration)
	}
	if !s.EndedAt.Equal(rec.EndedAt) {
		t.Errorf("ended_at = %v, want %v", s.EndedAt, rec.EndedAt)
	}

	// Duplicate session ids are rejected.
	if err := store.SaveSessionSummary(ctx, rec); err == nil {
		t.Error("expected error for duplicate session id")
	}
}

func TestRecentSessionsOrderAndFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, u := range []string{"alice", "bob", "alice"} {
		_, err := store.InsertSession(ctx, SessionSummary{
			SessionID: string(rune('a' + i)),
			UserID:    u,
			GameID:    "2048",
			Reason:    "manual",
			EndedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertSession() failed: %v", err)
		}
	}

	all, err := store.RecentSessions(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentSessions() failed: %v", err)
	}
	if len(all) != 3 || all[0].SessionID != "c" || all[2].SessionID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	alice, err := store.RecentSessions(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentSessions() failed: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("expected 2 sessions for alice, got %d", len(alice))
	}

	limited, err := store.RecentSessions(ctx, "", 1)
	if err != nil {
		t.Fatalf("RecentSessions() failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d rows", len(limited))
	}
}

func TestTopSessionsAndStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, score := range []int{100, 50, 200} {
		_, err := store.InsertSession(ctx, SessionSummary{
			SessionID:  "f" + string(rune('0'+i)),
			UserID:     "u",
			GameID:     "flappy",
			Reason:     "gameOver",
			FinalScore: score,
			Actions:    10,
			EndedAt:    time.UnixMilli(int64(1000 * (i + 1))),
		})
		if err != nil {
			t.Fatalf("InsertSession() failed: %v", err)
		}
	}
	if _, err := store.InsertSession(ctx, SessionSummary{SessionID: "d0", UserID: "u", GameID: "dino", Reason: "manual", FinalScore: 500}); err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}

	top, err := store.TopSessions(ctx, "flappy", 2)
	if err != nil {
		t.Fatalf("TopSessions() failed: %v", err)
	}
	if len(top) != 2 || top[0].FinalScore != 200 || top[1].FinalScore != 100 {
		t.Fatalf("unexpected top sessions: %+v", top)
	}

	stats, err := store.GetGameStats(ctx, "flappy")
	if err != nil {
		t.Fatalf("GetGameStats() failed: %v", err)
	}
	if stats.Sessions != 3 || stats.HighScore != 200 || stats.TotalActions != 30 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AvgScore < 116.6 || stats.AvgScore > 116.7 {
		t.Errorf("AvgScore = %f, want ~116.67", stats.AvgScore)
	}

	empty, err := store.GetGameStats(ctx, "nothing")
	if err != nil {
		t.Fatalf("GetGameStats() failed: %v", err)
	}
	if empty.Sessions != 0 || !empty.LastPlayed.IsZero() {
		t.Errorf("unexpected stats for unplayed game: %+v", empty)
	}

	all, err := store.GetAllGamesStats(ctx)
	if err != nil {
		t.Fatalf("GetAllGamesStats() failed: %v", err)
	}
	if len(all) != 2 || all["dino"].HighScore != 500 {
		t.Errorf("unexpected all stats: %+v", all)
	}
}

func TestModelStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Load(ctx, "2048"); !errors.Is(err, gameai.ErrModelNotFound) {
		t.Fatalf("Load() of missing model = %v, want ErrModelNotFound", err)
	}

	if err := store.Save(ctx, "2048", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Save(ctx, "2048", []byte(`{"version":1,"total_games":2}`)); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	data, err := store.Load(ctx, "2048")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if string(data) != `{"version":1,"total_games":2}` {
		t.Errorf("Load() = %s", data)
	}
}
