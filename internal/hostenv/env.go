// Package hostenv exposes read-only lookups of the host process environment.
package hostenv

import "os"

// LookupFunc reports the value of an environment variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// Accessor reads variables from the host environment. Absence is reported
// as a nil value, never as an error.
type Accessor struct {
	lookup LookupFunc
}

// New returns an Accessor backed by os.LookupEnv.
func New() *Accessor {
	return &Accessor{lookup: os.LookupEnv}
}

// NewWithLookup returns an Accessor backed by lookup.
func NewWithLookup(lookup LookupFunc) *Accessor {
	return &Accessor{lookup: lookup}
}

// Var returns the value of key, or nil when it is not set.
func (a *Accessor) Var(key string) *string {
	v, ok := a.lookup(key)
	if !ok {
		return nil
	}
	return &v
}

// Vars looks up every key. Duplicate keys collapse into one entry.
func (a *Accessor) Vars(keys []string) map[string]*string {
	out := make(map[string]*string, len(keys))
	for _, k := range keys {
		out[k] = a.Var(k)
	}
	return out
}
