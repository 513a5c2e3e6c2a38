package commands

import (
	"fmt"
	"sort"
	"strings"
)

// Conflict records an alias claimed by two entries. The later entry wins.
type Conflict struct {
	Alias    string
	Previous string
	Winner   string
}

// Registry maps aliases to command entries. It is built once and never
// mutated, so lookups need no locking.
type Registry struct {
	entries   []*Entry
	byAlias   map[string]*Entry
	conflicts []Conflict
}

// NewRegistry builds a registry from entries in registration order.
// Entries without a handler or without aliases are rejected.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		byAlias: make(map[string]*Entry),
	}

	for i := range entries {
		e := entries[i]
		if e.Handler == nil {
			return nil, fmt.Errorf("command %q has no handler", e.Name)
		}
		if len(e.Aliases) == 0 {
			return nil, fmt.Errorf("command %q has no aliases", e.Name)
		}

		aliases := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || strings.ContainsAny(a, " \t") {
				return nil, fmt.Errorf("command %q has an invalid alias %q", e.Name, a)
			}
			aliases = append(aliases, a)
		}
		e.Aliases = aliases
		entry := &e

		for _, a := range aliases {
			if prev, exists := r.byAlias[a]; exists && prev != entry {
				r.conflicts = append(r.conflicts, Conflict{Alias: a, Previous: prev.Name, Winner: entry.Name})
			}
			r.byAlias[a] = entry
		}
		r.entries = append(r.entries, entry)
	}

	return r, nil
}

// Resolve returns the entry registered for token, ignoring case
func (r *Registry) Resolve(token string) (*Entry, bool) {
	e, ok := r.byAlias[strings.ToLower(token)]
	return e, ok
}

// Parse splits body on the first space and resolves the leading token
func (r *Registry) Parse(body string) Invocation {
	token, args, _ := strings.Cut(body, " ")
	inv := Invocation{
		Token: strings.ToLower(token),
		Args:  args,
	}
	inv.Entry, _ = r.Resolve(inv.Token)
	return inv
}

// Conflicts returns aliases registered more than once
func (r *Registry) Conflicts() []Conflict {
	out := make([]Conflict, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// Entries returns the entries in registration order
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// Aliases returns every registered alias, sorted
func (r *Registry) Aliases() []string {
	out := make([]string, 0, len(r.byAlias))
	for a := range r.byAlias {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
