// Package dedupe implements the idempotency guard for apply requests.
//
// Every apply is keyed by workItemKey:actionId. The first caller to reserve
// a key owns it; racing callers block until the owner finishes and then
// receive the owner's stored terminal result instead of re-triggering the
// mutation. Reservations are persisted so the guarantee holds across
// processes: in-flight rows carry a crash-recovery TTL, complete rows are
// honored forever.
package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groblegark/tally/internal/metrics"
	"github.com/groblegark/tally/internal/store"
)

// Key returns the deterministic idempotency key for one action on one work
// item.
func Key(workItemKey, actionID string) string {
	return workItemKey + ":" + actionID
}

// Config tunes reservation lifetimes and waiting behavior.
type Config struct {
	// InFlightTTL is the crash-recovery window: an in-flight reservation
	// older than this may be taken over by a retry. Default: 2 minutes.
	InFlightTTL time.Duration

	// SweepInterval is how often the reaper purges expired in-flight rows.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// PollInterval is how often a blocked caller re-reads a reservation
	// held by another process. Default: 100 milliseconds.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.InFlightTTL == 0 {
		c.InFlightTTL = 2 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 60 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	return c
}

// Claim is the result of a Reserve call. Exactly one of Winner or Cached is
// meaningful: a winner must finish with Complete or Release; a non-winner
// holds the previous owner's stored terminal result.
type Claim struct {
	Winner bool
	Cached json.RawMessage
}

// Guard coordinates at-most-once apply execution over the reservation table.
type Guard struct {
	store  store.Store
	logger *slog.Logger
	cfg    Config

	mu      sync.Mutex
	flights map[string]chan struct{}

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New creates a guard over the given store.
func New(st store.Store, logger *slog.Logger, cfg Config) *Guard {
	return &Guard{
		store:   st,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		flights: make(map[string]chan struct{}),
	}
}

// Reserve claims the key or waits for its current owner. It returns a
// winning claim after an atomic check-and-set (fresh key, released key, or
// expired in-flight takeover), and a cached claim once the key is complete.
// While another caller holds the key in flight, Reserve blocks: on the
// owner's completion channel when the owner is in this process, polling the
// reservation row otherwise.
func (g *Guard) Reserve(ctx context.Context, tenant, key string) (*Claim, error) {
	for {
		existing, won, err := g.store.ReserveApply(ctx, tenant, key, g.cfg.InFlightTTL)
		if err != nil {
			return nil, fmt.Errorf("reserve %s: %w", key, err)
		}
		if won {
			g.openFlight(tenant, key)
			return &Claim{Winner: true}, nil
		}
		if existing.State == store.ReservationComplete {
			return &Claim{Cached: existing.Result}, nil
		}
		if err := g.waitForOwner(ctx, tenant, key); err != nil {
			return nil, err
		}
	}
}

// Complete stores the owner's terminal result and marks the key complete.
// The result is returned verbatim to every later caller of the same key.
func (g *Guard) Complete(ctx context.Context, tenant, key string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for %s: %w", key, err)
	}
	err = g.store.CompleteApply(ctx, tenant, key, raw)
	g.closeFlight(tenant, key)
	if err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Release drops the reservation so the key may be retried from scratch.
func (g *Guard) Release(ctx context.Context, tenant, key string) error {
	err := g.store.ReleaseApply(ctx, tenant, key)
	g.closeFlight(tenant, key)
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// StartReaper launches a background goroutine that purges expired in-flight
// reservations on a sweep interval. Call Stop to shut it down.
func (g *Guard) StartReaper() {
	g.reaperStop = make(chan struct{})
	g.reaperDone = make(chan struct{})

	go g.reapLoop()
	g.logger.Info("dedupe: reaper started",
		"ttl", g.cfg.InFlightTTL,
		"sweep_interval", g.cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (g *Guard) Stop() {
	if g.reaperStop != nil {
		close(g.reaperStop)
		<-g.reaperDone
		g.reaperStop = nil
		g.reaperDone = nil
	}
}

func (g *Guard) reapLoop() {
	defer close(g.reaperDone)

	ticker := time.NewTicker(g.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.reaperStop:
			return
		case <-ticker.C:
			n, err := g.store.PurgeExpiredReservations(context.Background())
			if err != nil {
				g.logger.Warn("dedupe: purge expired reservations", "error", err)
				continue
			}
			if n > 0 {
				metrics.ReservationsReapedTotal.Add(float64(n))
				g.logger.Info("dedupe: purged expired reservations", "count", n)
			}
		}
	}
}

// waitForOwner blocks until the key's current owner finishes, the poll
// interval elapses, or the context is done. The caller re-reserves after it
// returns nil.
func (g *Guard) waitForOwner(ctx context.Context, tenant, key string) error {
	g.mu.Lock()
	ch := g.flights[tenant+"/"+key]
	g.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Owner is in another process; poll the reservation row.
	timer := time.NewTimer(g.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) openFlight(tenant, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flights[tenant+"/"+key] = make(chan struct{})
}

func (g *Guard) closeFlight(tenant, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := tenant + "/" + key
	if ch, ok := g.flights[k]; ok {
		close(ch)
		delete(g.flights, k)
	}
}
