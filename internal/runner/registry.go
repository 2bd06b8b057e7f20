package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds registered runners and resolves which one to use for a
// scenario. An empty name resolves to the default runner. Names are case
// insensitive: configuration keys arrive lowercased while catalog files keep
// whatever case their authors wrote.
type Registry struct {
	mu          sync.RWMutex
	runners     map[string]Runner
	defaultName string
}

// NewRegistry creates an empty registry whose default runner is defaultName.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		runners:     make(map[string]Runner),
		defaultName: normalizeName(defaultName),
	}
}

// Register adds a runner under the given name, replacing any previous one.
func (r *Registry) Register(name string, rn Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[normalizeName(name)] = rn
}

// Default returns the name of the default runner.
func (r *Registry) Default() string {
	return r.defaultName
}

// Resolve returns the runner registered under name, or the default runner
// when name is empty.
func (r *Registry) Resolve(name string) (Runner, error) {
	target := normalizeName(name)
	if target == "" {
		target = r.defaultName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rn, ok := r.runners[target]
	if !ok {
		return nil, fmt.Errorf("runner %q is not registered", target)
	}
	return rn, nil
}

// List returns information about all registered runners, sorted by name
// for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.runners))
	for name, rn := range r.runners {
		info := rn.Info()
		info.Name = name
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
