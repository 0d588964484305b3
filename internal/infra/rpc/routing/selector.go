package routing

import (
	"sync"

	"github.com/vietddude/cycler/internal/infra/rpc/provider"
)

// Selector orders providers for a call: the preferred provider first, then the
// rest in round-robin order, with unavailable providers moved to the back.
type Selector struct {
	mu        sync.Mutex
	providers []provider.Provider
	preferred int
}

// NewSelector creates a selector over providers.
func NewSelector(providers []provider.Provider) *Selector {
	return &Selector{providers: providers}
}

// Order returns the providers in the order they should be tried.
func (s *Selector) Order() []provider.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.providers)
	ordered := make([]provider.Provider, 0, n)
	var parked []provider.Provider
	for i := 0; i < n; i++ {
		p := s.providers[(s.preferred+i)%n]
		if p.IsAvailable() {
			ordered = append(ordered, p)
		} else {
			parked = append(parked, p)
		}
	}
	return append(ordered, parked...)
}

// Rotate makes the provider after name the preferred one.
func (s *Selector) Rotate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.providers {
		if p.GetName() == name {
			s.preferred = (i + 1) % len(s.providers)
			return
		}
	}
}

// Len returns the number of providers.
func (s *Selector) Len() int {
	return len(s.providers)
}
