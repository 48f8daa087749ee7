package model

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultRuleNames are the notification categories known out of the box.
var DefaultRuleNames = []string{"7A", "6A", "5A", "Test"}

// FilterRule pairs a notification category with the role that triggers it.
type FilterRule struct {
	Name    string `json:"name"`
	RoleID  string `json:"role_id"`
	Enabled bool   `json:"enabled"`
}

// RuleSet is an immutable snapshot of the configured rules keyed by name.
// Never mutate a RuleSet obtained from a RuleStore; build a new one instead.
type RuleSet map[string]FilterRule

// NewRuleSet indexes rules by name. A later rule with the same name wins.
func NewRuleSet(rules ...FilterRule) RuleSet {
	rs := make(RuleSet, len(rules))
	for _, r := range rules {
		rs[r.Name] = r
	}
	return rs
}

// Names returns rule names in sorted order.
func (rs RuleSet) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns the rules sorted by name.
func (rs RuleSet) Rules() []FilterRule {
	out := make([]FilterRule, 0, len(rs))
	for _, name := range rs.Names() {
		out = append(out, rs[name])
	}
	return out
}

func (rs RuleSet) clone() RuleSet {
	out := make(RuleSet, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

// RuleStore holds the current RuleSet. Readers get a consistent snapshot;
// writers swap in a fresh copy so a reader never observes a partial update.
type RuleStore struct {
	current atomic.Pointer[RuleSet]
	// serializes read-modify-write updates
	mu sync.Mutex
}

func NewRuleStore(rules ...FilterRule) *RuleStore {
	s := &RuleStore{}
	rs := NewRuleSet(rules...)
	s.current.Store(&rs)
	return s
}

// DefaultRules returns the default categories, disabled and without roles.
func DefaultRules() []FilterRule {
	out := make([]FilterRule, 0, len(DefaultRuleNames))
	for _, name := range DefaultRuleNames {
		out = append(out, FilterRule{Name: name})
	}
	return out
}

func (s *RuleStore) Snapshot() RuleSet {
	return *s.current.Load()
}

// Replace swaps the whole rule set.
func (s *RuleStore) Replace(rules ...FilterRule) {
	rs := NewRuleSet(rules...)
	s.mu.Lock()
	s.current.Store(&rs)
	s.mu.Unlock()
}

// SetEnabled toggles a rule. Unknown names return false.
func (s *RuleStore) SetEnabled(name string, enabled bool) bool {
	return s.update(name, func(r *FilterRule) { r.Enabled = enabled })
}

// SetRole retargets a rule to another role ID. Unknown names return false.
func (s *RuleStore) SetRole(name, roleID string) bool {
	return s.update(name, func(r *FilterRule) { r.RoleID = roleID })
}

func (s *RuleStore) update(name string, fn func(*FilterRule)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.current.Load().clone()
	r, ok := rs[name]
	if !ok {
		return false
	}
	fn(&r)
	rs[name] = r
	s.current.Store(&rs)
	return true
}
