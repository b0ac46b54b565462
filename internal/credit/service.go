// Package credit aggregates a work item's credit chain into the summary view
// served to callers. Summaries are derived on every read and never stored.
package credit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/groblegark/tally/internal/model"
)

const (
	// DefaultRecentLimit is the recentEvents count when the caller passes none.
	DefaultRecentLimit = 10
	// MaxRecentLimit caps the recentEvents count.
	MaxRecentLimit = 100
)

// ChainReader reads one work item's ordered event chain.
type ChainReader interface {
	Chain(ctx context.Context, tenant, workItemKey string) ([]*model.CreditEvent, error)
}

// Service computes credit summaries over the chain.
type Service struct {
	chain ChainReader
}

// New creates a query service over the given chain reader.
func New(chain ChainReader) *Service {
	return &Service{chain: chain}
}

// IssueCredit folds the work item's chain into an IssueCreditSummary.
//
// totalSecondsSaved sums every event's impact; windowSecondsSaved sums only
// events at or after since (nil since means chain start, making window equal
// total). Each contributor accumulates secondsSaved weighted by their
// attribution share per event; share is their fraction of the total (zero
// when the total is zero). recentEvents holds the most recent limit events,
// newest first.
func (s *Service) IssueCredit(ctx context.Context, tenant, workItemKey string, since *time.Time, limit int) (*model.IssueCreditSummary, error) {
	events, err := s.chain.Chain(ctx, tenant, workItemKey)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}

	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	summary := &model.IssueCreditSummary{WorkItemKey: workItemKey}
	if since != nil {
		summary.WindowStart = since.UTC()
	} else if len(events) > 0 {
		summary.WindowStart = events[0].Timestamp
	}

	type agg struct {
		secondsSaved float64
		eventCount   int
	}
	contributors := make(map[string]*agg)

	for _, ev := range events {
		summary.TotalSecondsSaved += ev.Impact.SecondsSaved
		if since == nil || !ev.Timestamp.Before(*since) {
			summary.WindowSecondsSaved += ev.Impact.SecondsSaved
		}
		for _, a := range ev.Attributions {
			c, ok := contributors[a.ActorID]
			if !ok {
				c = &agg{}
				contributors[a.ActorID] = c
			}
			c.secondsSaved += ev.Impact.SecondsSaved * a.Weight
			c.eventCount++
		}
	}

	summary.Contributors = make([]model.ContributorCredit, 0, len(contributors))
	for id, c := range contributors {
		share := 0.0
		if summary.TotalSecondsSaved > 0 {
			share = c.secondsSaved / summary.TotalSecondsSaved
		}
		summary.Contributors = append(summary.Contributors, model.ContributorCredit{
			ActorID:      id,
			SecondsSaved: c.secondsSaved,
			Share:        share,
			EventCount:   c.eventCount,
		})
	}
	sort.Slice(summary.Contributors, func(i, j int) bool {
		a, b := summary.Contributors[i], summary.Contributors[j]
		if a.SecondsSaved != b.SecondsSaved {
			return a.SecondsSaved > b.SecondsSaved
		}
		return a.ActorID < b.ActorID
	})

	// Most recent events, newest first.
	n := min(limit, len(events))
	summary.RecentEvents = make([]*model.CreditEvent, 0, n)
	for i := len(events) - 1; i >= len(events)-n; i-- {
		summary.RecentEvents = append(summary.RecentEvents, events[i])
	}

	return summary, nil
}
