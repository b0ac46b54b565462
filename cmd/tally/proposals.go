package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var proposalsCmd = &cobra.Command{
	Use:     "proposals <work-item-key>",
	Short:   "List pending proposals for a work item",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := ledgerClient.Proposals(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(set)
		} else {
			printProposalSet(set)
		}
		return nil
	},
}
