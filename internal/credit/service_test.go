package credit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/groblegark/tally/internal/model"
)

// chainStub serves a fixed chain.
type chainStub struct {
	events []*model.CreditEvent
	err    error
}

func (c *chainStub) Chain(context.Context, string, string) ([]*model.CreditEvent, error) {
	return c.events, c.err
}

func event(id string, ts time.Time, secondsSaved float64, atts ...model.Attribution) *model.CreditEvent {
	return &model.CreditEvent{
		ID:           id,
		Timestamp:    ts,
		WorkItemKey:  "X-1",
		Impact:       model.Impact{SecondsSaved: secondsSaved},
		Attributions: atts,
	}
}

func TestIssueCredit_EmptyChain(t *testing.T) {
	s := New(&chainStub{})
	sum, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, 0)
	if err != nil {
		t.Fatalf("IssueCredit: %v", err)
	}
	if sum.TotalSecondsSaved != 0 || sum.WindowSecondsSaved != 0 {
		t.Errorf("totals = %v/%v, want 0/0", sum.TotalSecondsSaved, sum.WindowSecondsSaved)
	}
	if len(sum.Contributors) != 0 || len(sum.RecentEvents) != 0 {
		t.Errorf("contributors=%d recent=%d, want 0/0", len(sum.Contributors), len(sum.RecentEvents))
	}
}

func TestIssueCredit_ChainError(t *testing.T) {
	s := New(&chainStub{err: errors.New("boom")})
	if _, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, 0); err == nil {
		t.Fatal("expected error")
	}
}

// Three events solely attributed to u2: contributors == [{u2, 35, 1.0, 3}].
func TestIssueCredit_SingleContributor(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(&chainStub{events: []*model.CreditEvent{
		event("ce-1", t0, 10, model.Attribution{ActorID: "u2", Weight: 1}),
		event("ce-2", t0.Add(time.Minute), 20, model.Attribution{ActorID: "u2", Weight: 1}),
		event("ce-3", t0.Add(2*time.Minute), 5, model.Attribution{ActorID: "u2", Weight: 1}),
	}})

	sum, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, 0)
	if err != nil {
		t.Fatalf("IssueCredit: %v", err)
	}
	if sum.TotalSecondsSaved != 35 {
		t.Errorf("TotalSecondsSaved = %v, want 35", sum.TotalSecondsSaved)
	}
	if sum.WindowSecondsSaved != 35 {
		t.Errorf("WindowSecondsSaved = %v, want 35 (window defaults to chain start)", sum.WindowSecondsSaved)
	}
	if len(sum.Contributors) != 1 {
		t.Fatalf("got %d contributors, want 1", len(sum.Contributors))
	}
	c := sum.Contributors[0]
	if c.ActorID != "u2" || c.SecondsSaved != 35 || c.Share != 1.0 || c.EventCount != 3 {
		t.Errorf("contributor = %+v, want {u2 35 1 3}", c)
	}
}

// A since between events 1 and 2 windows out only the first event.
func TestIssueCredit_Windowing(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(&chainStub{events: []*model.CreditEvent{
		event("ce-1", t0, 10, model.Attribution{ActorID: "u2", Weight: 1}),
		event("ce-2", t0.Add(time.Minute), 20, model.Attribution{ActorID: "u2", Weight: 1}),
		event("ce-3", t0.Add(2*time.Minute), 5, model.Attribution{ActorID: "u2", Weight: 1}),
	}})
	ctx := context.Background()

	for _, tc := range []struct {
		name       string
		since      *time.Time
		wantWindow float64
	}{
		{"NilSinceMeansChainStart", nil, 35},
		{"ChainStart", ptr(t0), 35},
		{"BetweenFirstAndSecond", ptr(t0.Add(30 * time.Second)), 25},
		{"ExactSecondTimestampIncluded", ptr(t0.Add(time.Minute)), 25},
		{"AfterLastEvent", ptr(t0.Add(time.Hour)), 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sum, err := s.IssueCredit(ctx, "acme", "X-1", tc.since, 0)
			if err != nil {
				t.Fatalf("IssueCredit: %v", err)
			}
			if sum.WindowSecondsSaved != tc.wantWindow {
				t.Errorf("WindowSecondsSaved = %v, want %v", sum.WindowSecondsSaved, tc.wantWindow)
			}
			if sum.TotalSecondsSaved != 35 {
				t.Errorf("TotalSecondsSaved = %v, want 35 regardless of window", sum.TotalSecondsSaved)
			}
		})
	}
}

func TestIssueCredit_WeightedSplitAcrossContributors(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(&chainStub{events: []*model.CreditEvent{
		event("ce-1", t0, 30,
			model.Attribution{ActorID: "a1", Weight: 0.6},
			model.Attribution{ActorID: "u1", Weight: 0.4}),
		event("ce-2", t0.Add(time.Minute), 10,
			model.Attribution{ActorID: "u1", Weight: 1}),
	}})

	sum, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, 0)
	if err != nil {
		t.Fatalf("IssueCredit: %v", err)
	}
	if sum.TotalSecondsSaved != 40 {
		t.Errorf("TotalSecondsSaved = %v, want 40", sum.TotalSecondsSaved)
	}
	if len(sum.Contributors) != 2 {
		t.Fatalf("got %d contributors, want 2", len(sum.Contributors))
	}

	// u1 holds 0.4*30 + 10 = 22, a1 holds 0.6*30 = 18; sorted by seconds desc.
	u1, a1 := sum.Contributors[0], sum.Contributors[1]
	if u1.ActorID != "u1" || math.Abs(u1.SecondsSaved-22) > 1e-9 || u1.EventCount != 2 {
		t.Errorf("u1 = %+v", u1)
	}
	if a1.ActorID != "a1" || math.Abs(a1.SecondsSaved-18) > 1e-9 || a1.EventCount != 1 {
		t.Errorf("a1 = %+v", a1)
	}

	// Contributor seconds sum to the total; shares sum to 1.
	var seconds, shares float64
	for _, c := range sum.Contributors {
		seconds += c.SecondsSaved
		shares += c.Share
	}
	if math.Abs(seconds-sum.TotalSecondsSaved) > 1e-9 {
		t.Errorf("contributor seconds sum %v != total %v", seconds, sum.TotalSecondsSaved)
	}
	if math.Abs(shares-1) > 1e-9 {
		t.Errorf("shares sum to %v, want 1", shares)
	}
}

func TestIssueCredit_ZeroTotalZeroShares(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(&chainStub{events: []*model.CreditEvent{
		event("ce-1", t0, 0, model.Attribution{ActorID: "u1", Weight: 1}),
	}})

	sum, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, 0)
	if err != nil {
		t.Fatalf("IssueCredit: %v", err)
	}
	if sum.TotalSecondsSaved != 0 {
		t.Errorf("TotalSecondsSaved = %v, want 0", sum.TotalSecondsSaved)
	}
	if len(sum.Contributors) != 1 || sum.Contributors[0].Share != 0 {
		t.Errorf("contributors = %+v, want one with zero share", sum.Contributors)
	}
}

func TestIssueCredit_RecentEventsNewestFirst(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var events []*model.CreditEvent
	for i := 0; i < 5; i++ {
		events = append(events, event(
			string(rune('a'+i)), t0.Add(time.Duration(i)*time.Minute), 1,
			model.Attribution{ActorID: "u1", Weight: 1}))
	}
	s := New(&chainStub{events: events})

	sum, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, 3)
	if err != nil {
		t.Fatalf("IssueCredit: %v", err)
	}
	if len(sum.RecentEvents) != 3 {
		t.Fatalf("got %d recent events, want 3", len(sum.RecentEvents))
	}
	for i, want := range []string{"e", "d", "c"} {
		if sum.RecentEvents[i].ID != want {
			t.Errorf("recentEvents[%d] = %q, want %q", i, sum.RecentEvents[i].ID, want)
		}
	}
}

func TestIssueCredit_LimitClamped(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(&chainStub{events: []*model.CreditEvent{
		event("ce-1", t0, 1, model.Attribution{ActorID: "u1", Weight: 1}),
	}})

	sum, err := s.IssueCredit(context.Background(), "acme", "X-1", nil, MaxRecentLimit+500)
	if err != nil {
		t.Fatalf("IssueCredit: %v", err)
	}
	if len(sum.RecentEvents) != 1 {
		t.Errorf("got %d recent events, want 1", len(sum.RecentEvents))
	}
}

func ptr(t time.Time) *time.Time { return &t }
