package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:     "verify <work-item-key>",
	Short:   "Re-verify a work item's hash chain",
	GroupID: "ledger",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := ledgerClient.Verify(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(res)
		} else {
			printVerifyResult(res)
		}
		// Corruption is an error exit so scripts can gate on it.
		if !res.OK {
			os.Exit(1)
		}
		return nil
	},
}
