package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var creditCmd = &cobra.Command{
	Use:     "credit <work-item-key>",
	Short:   "Show the aggregated credit for a work item",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		var since *time.Time
		if s, _ := cmd.Flags().GetString("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("--since must be RFC 3339: %w", err)
			}
			since = &t
		}
		limit, _ := cmd.Flags().GetInt("limit")

		sum, err := ledgerClient.IssueCredit(context.Background(), key, since, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(sum)
		} else {
			printCreditSummary(sum)
		}
		return nil
	},
}

func init() {
	creditCmd.Flags().String("since", "", "window start (RFC 3339)")
	creditCmd.Flags().Int("limit", 0, "max recent events to include")
}
