package main

import (
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/ingest"
)

var (
	ingestCSVPath   string
	ingestTenant    string
	ingestDelimiter string
	ingestWindow    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Create renewal records for policies expiring soon",
	Long:  "Reads an AMS policy export and creates one renewal record per policy expiring within the window, attaching the prior term as baseline. Safe to re-run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		delim, size := utf8.DecodeRuneInString(ingestDelimiter)
		if size == 0 || size != len(ingestDelimiter) {
			return eris.Errorf("--delimiter must be a single character, got %q", ingestDelimiter)
		}
		if ingestWindow > 0 {
			cfg.Ingest.WindowDays = ingestWindow
		}

		ctx := cmd.Context()
		env, err := initApp(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		src := &ingest.CSVSource{Path: ingestCSVPath, Delimiter: delim}
		res, err := ingest.NewJob(src, env.Service, cfg.Ingest).Run(ctx, ingestTenant)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		zap.L().Info("ingest complete",
			zap.String("csv", ingestCSVPath),
			zap.Int64("scanned", res.Scanned),
			zap.Int64("created", res.Created),
			zap.Int64("existing", res.Existing),
			zap.Int64("failed", res.Failed),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVPath, "csv", "", "path to the policy export CSV (required)")
	ingestCmd.Flags().StringVar(&ingestTenant, "tenant", "", "tenant id (required)")
	ingestCmd.Flags().StringVar(&ingestDelimiter, "delimiter", ",", "CSV field delimiter")
	ingestCmd.Flags().IntVar(&ingestWindow, "window-days", 0, "days ahead to pick up (default from config)")
	_ = ingestCmd.MarkFlagRequired("csv")
	_ = ingestCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(ingestCmd)
}
