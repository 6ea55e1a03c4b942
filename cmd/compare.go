package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
)

var (
	compareRecordID string
	comparePayload  string
	compareActor    string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a renewal against its prior term",
	Long:  "Re-runs the comparison for an existing record (--id), or ingests a renewal request from a JSON file (--payload) and compares it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (compareRecordID == "") == (comparePayload == "") {
			return eris.New("exactly one of --id or --payload is required")
		}

		ctx := cmd.Context()
		env, err := initApp(ctx, "compare")
		if err != nil {
			return err
		}
		defer env.Close()

		var rec *model.Record
		if compareRecordID != "" {
			rec, err = env.Service.RunComparison(ctx, compareRecordID, compareActor)
		} else {
			var req renewal.RenewalRequest
			if err := readJSONFile(comparePayload, &req); err != nil {
				return err
			}
			if req.Actor == "" {
				req.Actor = compareActor
			}
			req.Compare = true
			rec, err = env.Service.IngestRenewal(ctx, req)
		}
		if err != nil {
			return eris.Wrap(err, "compare")
		}

		zap.L().Info("comparison complete",
			zap.String("record_id", rec.ID),
			zap.String("policy_number", rec.PolicyNumber),
			zap.String("status", string(rec.Status)),
			zap.String("recommendation", string(rec.Recommendation)),
		)
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareRecordID, "id", "", "renewal record id to re-compare")
	compareCmd.Flags().StringVar(&comparePayload, "payload", "", "path to a renewal request JSON file")
	compareCmd.Flags().StringVar(&compareActor, "actor", "", "acting user (default system)")
	rootCmd.AddCommand(compareCmd)
}
