package webgame

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/gamehub/internal/core"
)

type fakePage struct {
	calls  []string
	score  any
	err    error
	evalEr error
}

func (p *fakePage) do(call string) error {
	p.calls = append(p.calls, call)
	return p.err
}

func (p *fakePage) Click(_ context.Context, target string) error { return p.do("click " + target) }
func (p *fakePage) Type(_ context.Context, target, text string) error {
	return p.do("type " + target + " " + text)
}
func (p *fakePage) PressKey(_ context.Context, key string) error { return p.do("press " + key) }
func (p *fakePage) Scroll(_ context.Context, dx, dy float64) error { return p.do("scroll") }
func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) {
	return []byte("png"), p.do("screenshot")
}
func (p *fakePage) Evaluate(_ context.Context, script string) (any, error) {
	if script == DefaultScoreScript {
		return p.score, p.evalEr
	}
	return "ok", p.do("eval " + script)
}
func (p *fakePage) WaitForSelector(_ context.Context, sel string, _ time.Duration) error {
	return p.do("wait " + sel)
}

func TestValidate(t *testing.T) {
	g := New("")
	tests := []struct {
		name    string
		action  string
		data    core.ActionData
		wantErr bool
	}{
		{"arrow", "up", nil, false},
		{"space", "space", nil, false},
		{"click", "click", core.ActionData{"target": "#start"}, false},
		{"click without target", "click", nil, true},
		{"type", "type", core.ActionData{"text": "hi"}, false},
		{"type without text", "type", core.ActionData{"target": "#in"}, true},
		{"key", "key", core.ActionData{"key": "KeyW"}, false},
		{"scroll default", "scroll", nil, false},
		{"scroll bad dy", "scroll", core.ActionData{"dy": "far"}, true},
		{"eval", "eval", core.ActionData{"script": "1+1"}, false},
		{"wait", "wait", core.ActionData{"selector": "#board"}, false},
		{"wait bad timeout", "wait", core.ActionData{"selector": "#b", "timeout_ms": 0}, true},
		{"screenshot", "screenshot", nil, false},
		{"unknown", "jump", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Validate(tt.action, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.action, err, tt.wantErr)
			}
		})
	}
}

func TestApplyReadsScoreDelta(t *testing.T) {
	p := &fakePage{score: 40.0}
	g := New("")
	g.AttachPage(p)
	if err := g.Setup(nil); err != nil {
		t.Fatal(err)
	}

	out, err := g.Apply(context.Background(), "up", nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.ScoreDelta != 40 {
		t.Fatalf("delta = %d, want 40", out.ScoreDelta)
	}

	p.score = 55.0
	out, err = g.Apply(context.Background(), "click", core.ActionData{"target": "#go"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.ScoreDelta != 15 {
		t.Fatalf("delta = %d, want 15", out.ScoreDelta)
	}

	want := []string{"press ArrowUp", "click #go"}
	if len(p.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", p.calls, want)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", p.calls, want)
		}
	}
}

func TestApplyWithoutPage(t *testing.T) {
	g := New("")
	if _, err := g.Apply(context.Background(), "up", nil); err == nil {
		t.Fatal("expected error without a page")
	}
}

func TestApplyPropagatesPageError(t *testing.T) {
	p := &fakePage{err: errors.New("detached")}
	g := New("")
	g.AttachPage(p)

	if _, err := g.Apply(context.Background(), "space", nil); err == nil {
		t.Fatal("expected page error")
	}
}

func TestUnreadableScoreKeepsAction(t *testing.T) {
	p := &fakePage{evalEr: core.Wrap(core.ErrTransientIO, "evaluate", errors.New("boom"))}
	g := New("")
	g.AttachPage(p)

	out, err := g.Apply(context.Background(), "left", nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.ScoreDelta != 0 {
		t.Fatalf("delta = %d, want 0", out.ScoreDelta)
	}

	p.evalEr = core.Wrap(core.ErrEngineFailure, "evaluate", errors.New("gone"))
	if _, err := g.Apply(context.Background(), "left", nil); !errors.Is(err, core.ErrEngineFailure) {
		t.Fatalf("err = %v, want engine failure", err)
	}
}

func TestToScore(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{nil, 0, false},
		{12.6, 13, false},
		{"7", 7, false},
		{"x", 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := toScore(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("toScore(%v) = %d, %v; want %d, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
