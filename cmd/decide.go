package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
)

var (
	decideRecordID string
	decideDecision string
	decideNotes    string
	decideActor    string
)

// recordAction runs one state-machine transition against --id and prints
// the resulting record.
func recordAction(name string, fn func(ctx context.Context, svc *renewal.Service) (*model.Record, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "decide")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := fn(ctx, env.Service)
		if err != nil {
			return eris.Wrap(err, name)
		}
		zap.L().Info(name+" recorded",
			zap.String("record_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.String("actor", decideActor),
		)
		return printJSON(cmd.OutOrStdout(), rec)
	}
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Record the agent's decision on a compared renewal",
	RunE: recordAction("decision", func(ctx context.Context, svc *renewal.Service) (*model.Record, error) {
		return svc.HandleAgentDecision(ctx, decideRecordID, model.Decision(decideDecision), decideNotes, decideActor)
	}),
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a reshop with the final decision",
	RunE: recordAction("reshop resolution", func(ctx context.Context, svc *renewal.Service) (*model.Record, error) {
		return svc.ResolveReshop(ctx, decideRecordID, model.Decision(decideDecision), decideNotes, decideActor)
	}),
}

var quoteReadyCmd = &cobra.Command{
	Use:   "quote-ready",
	Short: "Mark alternative quotes as ready for a reshop",
	RunE: recordAction("quote ready", func(ctx context.Context, svc *renewal.Service) (*model.Record, error) {
		return svc.MarkQuoteReady(ctx, decideRecordID, decideActor)
	}),
}

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Complete a reviewed renewal and archive its term",
	RunE: recordAction("completion", func(ctx context.Context, svc *renewal.Service) (*model.Record, error) {
		return svc.Complete(ctx, decideRecordID, decideActor)
	}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a renewal record",
	RunE: recordAction("cancellation", func(ctx context.Context, svc *renewal.Service) (*model.Record, error) {
		return svc.Cancel(ctx, decideRecordID, decideNotes, decideActor)
	}),
}

func init() {
	for _, c := range []*cobra.Command{decideCmd, resolveCmd, quoteReadyCmd, completeCmd, cancelCmd} {
		c.Flags().StringVar(&decideRecordID, "id", "", "renewal record id (required)")
		c.Flags().StringVar(&decideActor, "actor", "", "acting agent (required)")
		_ = c.MarkFlagRequired("id")
		_ = c.MarkFlagRequired("actor")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{decideCmd, resolveCmd} {
		c.Flags().StringVar(&decideDecision, "decision", "", "decision value (required)")
		_ = c.MarkFlagRequired("decision")
	}
	decideCmd.Flags().StringVar(&decideNotes, "notes", "", "decision notes")
	resolveCmd.Flags().StringVar(&decideNotes, "notes", "", "resolution notes")
	cancelCmd.Flags().StringVar(&decideNotes, "reason", "", "cancellation reason")
}
