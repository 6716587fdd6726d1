// Package memory provides an in-memory snapshot writer for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"bucks/internal/core"
	"bucks/internal/mirror"
)

type Memory struct {
	mu    sync.Mutex
	last  *mirror.Snapshot
	calls int

	// Fail, when set, is returned by every write.
	Fail error
}

var _ mirror.Writer = (*Memory)(nil)

func New() *Memory {
	return &Memory{}
}

func (m *Memory) WriteSnapshot(_ context.Context, s mirror.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	copied := s
	copied.Funds = append([]core.Fund(nil), s.Funds...)
	copied.Movements = append([]core.Movement(nil), s.Movements...)
	m.last = &copied
	m.calls++
	return nil
}

// Last returns the most recent snapshot, or nil if none was written.
func (m *Memory) Last() *mirror.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Calls returns how many snapshots were accepted.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
