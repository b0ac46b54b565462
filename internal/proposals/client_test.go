package proposals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/groblegark/tally/internal/authgate"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/X-1/proposals" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get(authgate.TenantHeader); got != "acme" {
			t.Errorf("tenant header = %q", got)
		}
		if got := r.Header.Get(authgate.SignatureHeader); got != authgate.Signature("s3cret", nil) {
			t.Errorf("signature header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"workItemKey": "X-1",
			"proposals": [
				{"id":"p1","kind":"comment","estimatedSecondsSaved":30,
				 "proposedBy":{"type":"agent","id":"a1"}}
			],
			"estimatedSavingsSeconds": 30
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "acme", "s3cret", time.Second)
	set, err := c.Fetch(context.Background(), "X-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.WorkItemKey != "X-1" {
		t.Errorf("WorkItemKey = %q", set.WorkItemKey)
	}
	if len(set.Proposals) != 1 {
		t.Fatalf("got %d proposals, want 1", len(set.Proposals))
	}
	p := set.Proposals[0]
	if p.ID != "p1" || p.EstimatedSecondsSaved != 30 {
		t.Errorf("proposal = %+v", p)
	}
	if p.ProposedBy == nil || p.ProposedBy.ID != "a1" {
		t.Errorf("proposedBy = %+v", p.ProposedBy)
	}
	if set.EstimatedSavingsSeconds != 30 {
		t.Errorf("EstimatedSavingsSeconds = %v", set.EstimatedSavingsSeconds)
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "acme", "s3cret", time.Second)
	if _, err := c.Fetch(context.Background(), "X-1"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestFetch_FillsMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"proposals":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "acme", "s3cret", time.Second)
	set, err := c.Fetch(context.Background(), "X-7")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.WorkItemKey != "X-7" {
		t.Errorf("WorkItemKey = %q, want X-7", set.WorkItemKey)
	}
}
