package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/groblegark/tally/internal/model"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:     "apply <work-item-key>",
	Short:   "Apply an action to a work item and record its credit",
	GroupID: "ledger",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		req, err := buildApplyRequest(cmd, key)
		if err != nil {
			return err
		}

		resp, err := ledgerClient.Apply(context.Background(), key, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			printApplyResponse(resp)
		}
		if !resp.OK {
			os.Exit(1)
		}
		return nil
	},
}

// buildApplyRequest assembles the request from either --file (a complete
// request document), --proposal (fetched from the proposal collaborator), or
// the inline proposal flags.
func buildApplyRequest(cmd *cobra.Command, workItemKey string) (*model.ApplyRequest, error) {
	file, _ := cmd.Flags().GetString("file")
	proposalID, _ := cmd.Flags().GetString("proposal")

	req := &model.ApplyRequest{}

	if file != "" {
		data, err := readFileOrStdin(file)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
	} else if proposalID != "" {
		set, err := ledgerClient.Proposals(context.Background(), workItemKey)
		if err != nil {
			return nil, fmt.Errorf("fetching proposals: %w", err)
		}
		for _, p := range set.Proposals {
			if p.ID == proposalID {
				req.Proposal = p
				break
			}
		}
		if req.Proposal == nil {
			return nil, fmt.Errorf("no proposal %q for %s", proposalID, workItemKey)
		}
	} else {
		kind, _ := cmd.Flags().GetString("kind")
		if kind == "" {
			return nil, fmt.Errorf("one of --file, --proposal, or --kind is required")
		}
		payload, _ := cmd.Flags().GetString("payload")
		id, _ := cmd.Flags().GetString("id")
		seconds, _ := cmd.Flags().GetFloat64("seconds-saved")

		req.Proposal = &model.Proposal{
			ID:                    id,
			Kind:                  model.ActionKind(kind),
			EstimatedSecondsSaved: seconds,
		}
		if payload != "" {
			req.Proposal.Payload = json.RawMessage(payload)
		}
		// A hand-built proposal is by definition manual.
		req.Manual = true
	}

	// Actor and attribution flags override whatever the document carried.
	if actorID, _ := cmd.Flags().GetString("actor-id"); actorID != "" {
		actorType, _ := cmd.Flags().GetString("actor-type")
		actorName, _ := cmd.Flags().GetString("actor-name")
		req.Actor = model.Actor{Type: model.ActorType(actorType), ID: actorID, DisplayName: actorName}
	}
	if cmd.Flags().Changed("edited") {
		req.Edited, _ = cmd.Flags().GetBool("edited")
	}
	if cmd.Flags().Changed("manual") {
		req.Manual, _ = cmd.Flags().GetBool("manual")
	}
	if actionID, _ := cmd.Flags().GetString("action-id"); actionID != "" {
		req.ActionID = actionID
	}
	if parents, _ := cmd.Flags().GetStringSlice("parent"); len(parents) > 0 {
		req.Parents = parents
	}
	if cmd.Flags().Changed("quality") {
		q, _ := cmd.Flags().GetFloat64("quality")
		req.Quality = &q
	}

	return req, nil
}

func readFileOrStdin(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func registerApplyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "read the apply request from a JSON file (- for stdin)")
	cmd.Flags().String("proposal", "", "apply a proposal by id from the proposal collaborator")
	cmd.Flags().String("id", "", "action id for an inline proposal")
	cmd.Flags().String("kind", "", "action kind for an inline proposal (comment, transition, set-labels, link)")
	cmd.Flags().String("payload", "", "JSON payload for an inline proposal")
	cmd.Flags().Float64("seconds-saved", 0, "estimated seconds saved for an inline proposal")
	cmd.Flags().String("actor-id", defaultActorID(), "applying actor id")
	cmd.Flags().String("actor-name", "", "applying actor display name")
	cmd.Flags().String("actor-type", "human", "applying actor type (human or agent)")
	cmd.Flags().Bool("edited", false, "the actor edited the proposal before applying")
	cmd.Flags().Bool("manual", false, "the action was composed by hand")
	cmd.Flags().String("action-id", "", "explicit idempotency action id")
	cmd.Flags().StringSlice("parent", nil, "parent event id (repeatable)")
	cmd.Flags().Float64("quality", 0, "quality score in [0,1]")
}

func init() {
	registerApplyFlags(applyCmd)
}
