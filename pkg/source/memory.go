package source

import (
	"context"
	"sync"

	"github.com/rowkit/rowkit/pkg/state"
)

// Memory is an in-process data source backed by a row slice. It supports
// the full optional capability set: refresh re-delivers the current rows,
// and Publish fans a patch out to subscribers (updating the backing rows so
// a later refresh stays consistent).
type Memory struct {
	mu    sync.Mutex
	rows  state.Rows
	idKey string
	subs  map[int]func(Patch)
	next  int
}

// NewMemory creates a memory source over the given rows. idKey is used to
// apply published patches to the backing collection.
func NewMemory(rows state.Rows, idKey string) *Memory {
	return &Memory{
		rows:  rows.Clone(),
		idKey: idKey,
		subs:  map[int]func(Patch){},
	}
}

// Init delivers a copy of the current rows.
func (m *Memory) Init(ctx context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Result{Rows: m.rows.Clone(), TotalCount: len(m.rows)}, nil
}

// Refresh is identical to Init for a memory source.
func (m *Memory) Refresh(ctx context.Context) (Result, error) {
	return m.Init(ctx)
}

// Subscribe registers a patch listener. The returned cancel function removes
// the subscription.
func (m *Memory) Subscribe(fn func(Patch)) (cancel func()) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Publish applies a patch to the backing rows and delivers it to all
// subscribers in registration order.
func (m *Memory) Publish(p Patch) {
	m.mu.Lock()
	m.rows = Apply(m.rows, p, m.idKey)
	// map iteration order is random; deliver in subscription order
	listeners := make([]func(Patch), 0, len(m.subs))
	for id := 0; id < m.next; id++ {
		if fn, ok := m.subs[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
}

// Destroy drops all subscribers.
func (m *Memory) Destroy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = map[int]func(Patch){}
	return nil
}

// Capability checks.
var (
	_ DataSource   = (*Memory)(nil)
	_ Subscribable = (*Memory)(nil)
	_ Refresher    = (*Memory)(nil)
	_ Destroyer    = (*Memory)(nil)
)
