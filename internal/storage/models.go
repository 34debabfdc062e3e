package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Invocation is one journaled command call.
type Invocation struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Command   string        `json:"command"`
	Transport string        `json:"transport"`
	Args      string        `json:"args"` // JSON object stored as text
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}
