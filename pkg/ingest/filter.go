package ingest

import (
	"sort"
	"sync"

	"github.com/comind-network/cogindex/pkg/model"
)

// Filter is the in-memory admission set derived from the agent
// registry. It grows while the worker runs: every profile event
// re-derives the owner's entry, so admission never requires a restart.
type Filter struct {
	mu                sync.RWMutex
	owners            map[string][]model.CollectionPattern
	profileCollection string
}

// NewFilter creates an empty filter that always watches the profile
// collection.
func NewFilter(profileCollection string) *Filter {
	return &Filter{
		owners:            make(map[string][]model.CollectionPattern),
		profileCollection: profileCollection,
	}
}

// SetAgent replaces the watch set for an owner.
func (f *Filter) SetAgent(owner string, patterns []model.CollectionPattern) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[owner] = append([]model.CollectionPattern(nil), patterns...)
}

// Admit reports whether a record event from the owner in the given
// collection should be indexed.
func (f *Filter) Admit(owner, collection string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	patterns, ok := f.owners[owner]
	if !ok {
		return false
	}
	return model.MatchAny(patterns, collection)
}

// Collections returns the sorted union of all watched patterns plus
// the profile collection, suitable for the stream subscription. The
// server-side filter is a superset of admission; Admit stays
// authoritative client-side.
func (f *Filter) Collections() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	set := map[string]struct{}{f.profileCollection: {}}
	for _, patterns := range f.owners {
		for _, p := range patterns {
			set[string(p)] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
