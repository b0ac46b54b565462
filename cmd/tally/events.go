package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:     "events <work-item-key>",
	Short:   "List a work item's credit events in chain order",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := ledgerClient.Events(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(events)
		} else {
			printEventTable(events)
		}
		return nil
	},
}
