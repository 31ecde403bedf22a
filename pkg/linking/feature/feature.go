// Package feature holds the baseline feature generators of the ranking
// pipeline and the registry that orders them.
package feature

import (
	"fmt"
	"sort"

	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/store"
)

const (
	NameLevenshtein = "levenshtein"
	NameSignature   = "signature"
	NameEntityStats = "entity-stats"
	NameIDRank      = "id-rank"
)

type registration struct {
	name      string
	priority  int
	disabled  bool
	generator linking.FeatureGenerator
}

// Override changes the priority of a registered generator or disables it.
type Override struct {
	Priority *int
	Disabled bool
}

// Registry maps generator names to priorities. It is filled at startup and
// resolved once into the ordered list the linking service runs.
type Registry struct {
	entries map[string]*registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Baseline returns a registry with the four baseline generators. stats may be
// nil, in which case entity statistics stay at their defaults.
func Baseline(stats store.StatsLookup) *Registry {
	r := NewRegistry()
	_ = r.Register(NameLevenshtein, 100, Levenshtein{})
	_ = r.Register(NameSignature, 200, Signature{})
	_ = r.Register(NameEntityStats, 300, EntityStats{Lookup: stats})
	_ = r.Register(NameIDRank, 400, IDRank{})
	return r
}

func (r *Registry) Register(name string, priority int, g linking.FeatureGenerator) error {
	if name == "" || g == nil {
		return fmt.Errorf("generator registration needs a name and an implementation")
	}
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("feature generator %q already registered", name)
	}
	r.entries[name] = &registration{name: name, priority: priority, generator: g}
	return nil
}

// Configure applies overrides by generator name. Unknown names are an error.
func (r *Registry) Configure(overrides map[string]Override) error {
	for name, o := range overrides {
		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("unknown feature generator %q", name)
		}
		if o.Priority != nil {
			e.priority = *o.Priority
		}
		e.disabled = o.Disabled
	}
	return nil
}

// Names returns the enabled generator names in resolution order.
func (r *Registry) Names() []string {
	entries := r.sorted()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	return names
}

// Resolve returns the enabled generators ordered by ascending priority, ties
// broken by name.
func (r *Registry) Resolve() []linking.FeatureGenerator {
	entries := r.sorted()
	out := make([]linking.FeatureGenerator, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.generator)
	}
	return out
}

func (r *Registry) sorted() []*registration {
	entries := make([]*registration, 0, len(r.entries))
	for _, e := range r.entries {
		if e.disabled {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].name < entries[j].name
	})
	return entries
}
