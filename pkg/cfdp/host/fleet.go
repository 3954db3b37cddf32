package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/pdu"
	"github.com/cfdpgo/entity/pkg/cfdp/source"
)

// Fleet runs every Manager registered to it, concurrently, under one
// cancellation scope. A process terminating CFDP traffic for more
// than one local entity ID registers one Manager per entity ID and
// lets Fleet own their Tick loops; a single-entity process can use a
// bare Manager directly and skip Fleet entirely.
type Fleet struct {
	mu       sync.RWMutex
	managers map[ids.EntityID]*Manager
}

// NewFleet returns an empty Fleet.
func NewFleet() *Fleet {
	return &Fleet{managers: make(map[ids.EntityID]*Manager)}
}

// Register adds m to the fleet under its local entity ID. Registering
// a second Manager under an already-registered entity ID replaces the
// first.
func (f *Fleet) Register(m *Manager) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.managers[m.cfg.LocalEntityID] = m
}

// Manager returns the Manager registered for local, if any.
func (f *Fleet) Manager(local ids.EntityID) (*Manager, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.managers[local]
	return m, ok
}

// Submit routes a PutRequest to the Manager owning localEntity.
func (f *Fleet) Submit(ctx context.Context, localEntity ids.EntityID, req source.PutRequest) (ids.TransactionID, error) {
	m, ok := f.Manager(localEntity)
	if !ok {
		return ids.TransactionID{}, fmt.Errorf("%w: %s", ErrFleetUnknownEntity, localEntity)
	}
	return m.Submit(ctx, req)
}

// Deliver routes an inbound PDU to the Manager owning localEntity —
// the entity whose transport session the PDU arrived on.
func (f *Fleet) Deliver(ctx context.Context, localEntity ids.EntityID, p pdu.PDU, direction pdu.Direction) error {
	m, ok := f.Manager(localEntity)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFleetUnknownEntity, localEntity)
	}
	return m.Deliver(ctx, p, direction)
}

// Run advances every registered Manager's Tick loop once per interval
// until ctx is canceled or any Manager's Tick returns an error, in
// which case Run cancels the rest and returns that error. It mirrors
// the fan-out-with-shared-cancellation shape of a worker pool: each
// Manager gets its own goroutine, errgroup propagates the first
// failure, and ctx.Done() is every goroutine's exit signal.
func (f *Fleet) Run(ctx context.Context, interval time.Duration) error {
	f.mu.RLock()
	managers := make([]*Manager, 0, len(f.managers))
	for _, m := range f.managers {
		managers = append(managers, m)
	}
	f.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range managers {
		m := m
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := m.Tick(ctx, interval); err != nil {
						return fmt.Errorf("host: manager %s tick: %w", m.cfg.LocalEntityID, err)
					}
				}
			}
		})
	}
	return g.Wait()
}
