// Package apiconfig holds the API base URL the front-end talks to.
package apiconfig

import (
	"os"
	"sync"
)

// Store is the process-wide holder of the API base URL. The zero value is
// not usable; construct it with New or NewFromEnv.
type Store struct {
	mu      sync.RWMutex
	baseURL string
}

// New returns a Store holding baseURL.
func New(baseURL string) *Store {
	return &Store{baseURL: baseURL}
}

// NewFromEnv seeds a Store from the environment variable envKey, falling back
// to defaultURL when the variable is not set. A variable that is set to the
// empty string counts as set. The value is used verbatim.
func NewFromEnv(envKey, defaultURL string) *Store {
	return newFromLookup(os.LookupEnv, envKey, defaultURL)
}

func newFromLookup(lookup func(string) (string, bool), envKey, defaultURL string) *Store {
	if v, ok := lookup(envKey); ok {
		return New(v)
	}
	return New(defaultURL)
}

// Get returns the current base URL.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// Set replaces the base URL. No validation is applied.
func (s *Store) Set(baseURL string) {
	s.mu.Lock()
	s.baseURL = baseURL
	s.mu.Unlock()
}
