package plugin

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/gitpipe/internal/log"
)

type registration struct {
	plugin Plugin
}

// Registry holds registered hooks in registration order. It is owned by one
// executor and shared by reference with every chain that executor creates.
type Registry struct {
	mu      sync.RWMutex
	entries []*registration
	logger  *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{logger: logger.Named("plugins")}
}

// Add registers p and returns a function removing it again.
func (r *Registry) Add(p Plugin) (remove func()) {
	if p == nil {
		return func() {}
	}

	reg := &registration{plugin: p}
	r.mu.Lock()
	r.entries = append(r.entries, reg)
	r.mu.Unlock()

	r.logger.Debug("Registered", "point", p.Point().String())

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(reg) })
	}
}

// AddAll registers every plugin and returns a function removing all of them.
func (r *Registry) AddAll(plugins ...Plugin) (remove func()) {
	removers := make([]func(), 0, len(plugins))
	for _, p := range plugins {
		removers = append(removers, r.Add(p))
	}
	return func() {
		for _, fn := range removers {
			fn()
		}
	}
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Count returns the number of hooks registered for point.
func (r *Registry) Count(point Point) int {
	n := 0
	for _, p := range r.snapshot() {
		if p.Point() == point {
			n++
		}
	}
	return n
}

func (r *Registry) remove(reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, candidate := range r.entries {
		if candidate == reg {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// snapshot copies the hook list so hooks run without holding the lock and
// may themselves add or remove hooks.
func (r *Registry) snapshot() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Plugin, len(r.entries))
	for i, reg := range r.entries {
		out[i] = reg.plugin
	}
	return out
}

// Binary resolves the executable starting from binary.
func (r *Registry) Binary(binary string, c Context) (string, error) {
	for _, p := range r.snapshot() {
		hook, ok := p.(BinaryPlugin)
		if !ok || hook.Resolve == nil {
			continue
		}
		next, err := hook.Resolve(binary, c)
		if err != nil {
			return "", err
		}
		binary = next
	}
	if binary == "" {
		return "", fmt.Errorf("no binary resolved for %s", c.Method())
	}
	return binary, nil
}

// Args rewrites args through every args hook. The input slice is not
// modified.
func (r *Registry) Args(args []string, c Context) ([]string, error) {
	out := append([]string(nil), args...)
	for _, p := range r.snapshot() {
		hook, ok := p.(ArgsPlugin)
		if !ok || hook.Resolve == nil {
			continue
		}
		next, err := hook.Resolve(out, c)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// SpawnOptions rewrites options through every spawn-options hook.
func (r *Registry) SpawnOptions(options SpawnOptions, c Context) SpawnOptions {
	out := options.Clone()
	for _, p := range r.snapshot() {
		hook, ok := p.(SpawnOptionsPlugin)
		if !ok || hook.Resolve == nil {
			continue
		}
		out = hook.Resolve(out, c)
	}
	return out
}

// BeforeSpawn runs every before-spawn hook.
func (r *Registry) BeforeSpawn(c *BeforeSpawnContext) {
	for _, p := range r.snapshot() {
		if hook, ok := p.(BeforeSpawnPlugin); ok && hook.Action != nil {
			hook.Action(c)
		}
	}
}

// AfterSpawn runs every after-spawn hook.
func (r *Registry) AfterSpawn(c *AfterSpawnContext) {
	for _, p := range r.snapshot() {
		if hook, ok := p.(AfterSpawnPlugin); ok && hook.Action != nil {
			hook.Action(c)
		}
	}
}

// TaskError passes err through every error hook and returns the final
// classification.
func (r *Registry) TaskError(err error, c ErrorContext) error {
	for _, p := range r.snapshot() {
		if hook, ok := p.(ErrorPlugin); ok && hook.Classify != nil {
			err = hook.Classify(err, c)
		}
	}
	return err
}
