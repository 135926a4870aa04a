// Package registry provides the game catalog: an explicit mapping from a game
// id to its definition and factory. Native games are registered at boot by
// cmd; browser games are added from configuration or static-server discovery.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/game"
)

// Kind distinguishes in-process games from browser-hosted ones.
type Kind string

const (
	KindNative  Kind = "native"
	KindBrowser Kind = "browser"
)

// Factory creates the rules of a fresh game instance.
type Factory func() game.Rules

// GameDefinition describes a registered game. Immutable after registration.
type GameDefinition struct {
	ID          string
	Kind        Kind
	Title       string
	Description string
	URL         string      // browser games only
	Limits      core.Limits // game defaults, overridden by configuration
	Factory     Factory
}

// NeedsBrowser reports whether sessions of this game require a browser page.
func (d GameDefinition) NeedsBrowser() bool {
	return d.Kind == KindBrowser
}

// Registry holds game definitions. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]GameDefinition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]GameDefinition)}
}

// Register adds a game definition.
// Returns an error if the id is empty, has no factory, or is already registered.
func (r *Registry) Register(def GameDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("registry: game id is empty")
	}
	if def.Factory == nil {
		return fmt.Errorf("registry: game %q has no factory", def.ID)
	}
	if def.Kind == "" {
		def.Kind = KindNative
	}
	if def.Title == "" {
		def.Title = def.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("registry: game %q already registered", def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// MustRegister is Register that panics on error, for boot-time wiring.
func (r *Registry) MustRegister(def GameDefinition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// List returns all registered games, sorted by ID.
func (r *Registry) List() []GameDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]GameDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		result = append(result, d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (GameDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.defs[id]
	return d, ok
}

// Exists checks if a game with the given ID is registered.
func (r *Registry) Exists(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Len returns the number of registered games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
