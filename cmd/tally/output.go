package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/groblegark/tally/internal/ledger"
	"github.com/groblegark/tally/internal/model"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatSplits(splits []model.Attribution) string {
	parts := make([]string, len(splits))
	for i, a := range splits {
		parts[i] = fmt.Sprintf("%s=%.2f", a.ActorID, a.Weight)
	}
	return strings.Join(parts, ", ")
}

func printApplyResponse(resp *model.ApplyResponse) {
	fmt.Printf("Result:      %s\n", resp.Result)
	if !resp.OK {
		if resp.Code != "" {
			fmt.Printf("Code:        %s\n", resp.Code)
		}
		if resp.Error != "" {
			fmt.Printf("Error:       %s\n", resp.Error)
		}
		return
	}
	if resp.Applied != nil {
		fmt.Printf("Applied:     %s (%s)\n", resp.Applied.ID, resp.Applied.Kind)
	}
	if resp.Credit != nil {
		fmt.Printf("Saved:       %.0fs\n", resp.Credit.SecondsSaved)
		if resp.Credit.Quality != nil {
			fmt.Printf("Quality:     %.2f\n", *resp.Credit.Quality)
		}
		fmt.Printf("Splits:      %s\n", formatSplits(resp.Credit.Splits))
		fmt.Printf("Reason:      %s\n", resp.Credit.Reason)
		fmt.Printf("Event:       %s\n", resp.Credit.EventID)
		fmt.Printf("Hash:        %s\n", resp.Credit.Hash)
	}
}

func printCreditSummary(sum *model.IssueCreditSummary) {
	fmt.Printf("Work Item:   %s\n", sum.WorkItemKey)
	fmt.Printf("Total Saved: %.0fs\n", sum.TotalSecondsSaved)
	if !sum.WindowStart.IsZero() {
		fmt.Printf("Window:      %.0fs since %s\n", sum.WindowSecondsSaved, formatTime(sum.WindowStart))
	}

	if len(sum.Contributors) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACTOR\tSAVED\tSHARE\tEVENTS")
		for _, c := range sum.Contributors {
			fmt.Fprintf(w, "%s\t%.0fs\t%.1f%%\t%d\n",
				c.ActorID, c.SecondsSaved, c.Share*100, c.EventCount)
		}
		w.Flush()
	}

	if len(sum.RecentEvents) > 0 {
		fmt.Println()
		fmt.Println("Recent:")
		for _, ev := range sum.RecentEvents {
			fmt.Printf("  [%s] %s %s %.0fs by %s\n",
				formatTime(ev.Timestamp), ev.ID, ev.Action.Kind,
				ev.Impact.SecondsSaved, ev.Actor.ID)
		}
	}
}

func printEventTable(events []*model.CreditEvent) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tKIND\tACTOR\tSAVED\tSPLITS")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0fs\t%s\n",
			ev.ID,
			formatTime(ev.Timestamp),
			ev.Action.Kind,
			ev.Actor.ID,
			ev.Impact.SecondsSaved,
			formatSplits(ev.Attributions),
		)
	}
	w.Flush()
	fmt.Printf("\n%d events\n", len(events))
}

func printVerifyResult(res *ledger.VerifyResult) {
	fmt.Printf("Work Item:   %s\n", res.WorkItemKey)
	fmt.Printf("Events:      %d\n", res.Events)
	if res.OK {
		fmt.Printf("Chain:       ok\n")
		return
	}
	fmt.Printf("Chain:       CORRUPT\n")
	fmt.Printf("Bad Event:   %s\n", res.BadEventID)
	fmt.Printf("Reason:      %s\n", res.Reason)
}

func printProposalSet(set *model.ProposalSet) {
	fmt.Printf("Work Item:   %s\n", set.WorkItemKey)
	fmt.Printf("Est. Saved:  %.0fs\n", set.EstimatedSavingsSeconds)
	if len(set.Proposals) == 0 {
		fmt.Println("\nNo proposals.")
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tEST\tPROPOSED BY\tEXPLAIN")
	for _, p := range set.Proposals {
		by := "-"
		if p.ProposedBy != nil {
			by = p.ProposedBy.ID
		}
		explain := p.Explain
		if len(explain) > 50 {
			explain = explain[:47] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%.0fs\t%s\t%s\n",
			p.ID, p.Kind, p.EstimatedSecondsSaved, by, explain)
	}
	w.Flush()
}
