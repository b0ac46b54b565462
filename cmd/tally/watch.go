package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/groblegark/tally/internal/client"
	"github.com/groblegark/tally/internal/events"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream ledger events as they happen",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ch, cancel, err := ledgerClient.Stream(ctx, topics)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case evt, ok := <-ch:
				if !ok {
					return nil
				}
				printStreamEvent(evt)
			}
		}
	},
}

func printStreamEvent(evt client.StreamEvent) {
	if jsonOutput {
		out := map[string]any{
			"id":    evt.ID,
			"topic": evt.Topic,
			"data":  json.RawMessage(evt.Data),
		}
		data, err := json.Marshal(out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	ts := time.Now().Format("15:04:05")
	switch evt.Topic {
	case events.TopicCreditAppended:
		var p events.CreditAppended
		if err := json.Unmarshal(evt.Data, &p); err == nil && p.Event != nil {
			fmt.Printf("[%s] %s %s %s %.0fs by %s\n",
				ts, evt.Topic, p.Event.WorkItemKey, p.Event.Action.Kind,
				p.Event.Impact.SecondsSaved, p.Event.Actor.ID)
			return
		}
	case events.TopicApplyFailed:
		var p events.ApplyFailed
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			fmt.Printf("[%s] %s %s %s: %s\n", ts, evt.Topic, p.WorkItemKey, p.Code, p.Reason)
			return
		}
	case events.TopicChainCorrupted:
		var p events.ChainCorrupted
		if err := json.Unmarshal(evt.Data, &p); err == nil {
			fmt.Printf("[%s] %s %s bad=%s: %s\n", ts, evt.Topic, p.WorkItemKey, p.BadEventID, p.Reason)
			return
		}
	}
	fmt.Printf("[%s] %s %s\n", ts, evt.Topic, evt.Data)
}

func init() {
	watchCmd.Flags().StringSlice("topics", []string{"tally.>"}, "topic patterns to subscribe to")
}
