package registry

import (
	"sync"
	"testing"

	"github.com/vovakirdan/gamehub/internal/game"
)

func stubFactory() game.Rules { return nil }

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		def     GameDefinition
		wantErr bool
	}{
		{"valid", GameDefinition{ID: "a", Factory: stubFactory}, false},
		{"empty id", GameDefinition{Factory: stubFactory}, true},
		{"no factory", GameDefinition{ID: "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.Register(tt.def)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := New()
	r.MustRegister(GameDefinition{ID: "plain", Factory: stubFactory})

	d, ok := r.Get("plain")
	if !ok {
		t.Fatal("expected plain to be registered")
	}
	if d.Kind != KindNative {
		t.Errorf("Kind = %q, want %q", d.Kind, KindNative)
	}
	if d.Title != "plain" {
		t.Errorf("Title = %q, want id as title", d.Title)
	}
	if d.NeedsBrowser() {
		t.Error("native game should not need a browser")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	r.MustRegister(GameDefinition{ID: "x", Factory: stubFactory})
	if err := r.Register(GameDefinition{ID: "x", Factory: stubFactory, Kind: KindBrowser}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	d, _ := r.Get("x")
	if d.Kind != KindNative {
		t.Error("duplicate registration replaced the original definition")
	}
}

func TestMustRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustRegister to panic")
		}
	}()
	New().MustRegister(GameDefinition{})
}

func TestListSorted(t *testing.T) {
	r := New()
	for _, id := range []string{"snake", "2048", "simple_test"} {
		r.MustRegister(GameDefinition{ID: id, Factory: stubFactory})
	}

	list := r.List()
	want := []string{"2048", "simple_test", "snake"}
	if len(list) != len(want) {
		t.Fatalf("List() has %d entries, want %d", len(list), len(want))
	}
	for i, d := range list {
		if d.ID != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, d.ID, want[i])
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if r.Exists("pong") {
		t.Error("Exists(pong) = true, want false")
	}
}

func TestConcurrentRegister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register(GameDefinition{ID: "same", Kind: KindBrowser, Factory: stubFactory}) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Errorf("%d registrations succeeded, want 1", ok)
	}
}
