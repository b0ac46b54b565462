package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groblegark/tally/internal/store"
)

// Destination is the interface for a sync target (S3, git, etc.). Each
// tenant's export is written under its own name.
type Destination interface {
	// Write sends one tenant's JSONL payload to the destination.
	Write(ctx context.Context, tenant string, data []byte) error
}

// Scheduler runs periodic ledger exports to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.syncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		s.logger.Error("sync list tenants failed", "err", err)
		return
	}

	var total int
	for _, tenant := range tenants {
		var buf bytes.Buffer
		if err := ExportTenantJSONL(ctx, s.store, tenant, &buf); err != nil {
			s.logger.Error("sync export failed", "tenant", tenant, "err", err)
			continue
		}
		data := buf.Bytes()
		total += len(data)

		for i, dest := range s.destinations {
			if err := dest.Write(ctx, tenant, data); err != nil {
				s.logger.Error("sync destination write failed",
					"tenant", tenant, "destination", fmt.Sprintf("%d", i), "err", err)
			}
		}
	}

	s.logger.Info("sync completed",
		"tenants", len(tenants), "destinations", len(s.destinations), "bytes", total)
}
