// Package identity provides the local display name used to parametrize the
// stream URI. Resolution of the name itself happens outside this process.
package identity

import "sync"

// Static is an identity provider whose name is set from configuration and
// may be updated at runtime once the name becomes known.
type Static struct {
	mu   sync.RWMutex
	name string
}

func NewStatic(name string) *Static {
	return &Static{name: name}
}

// Identity returns the current name; ok is false until a name is set.
func (s *Static) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.name != ""
}

func (s *Static) Set(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}
