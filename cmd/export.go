package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/report"
	"github.com/tcdsagency/renewals/internal/store"
)

var (
	exportOut    string
	exportTenant string
	exportStatus string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the renewal worklist to an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		filter := store.RecordFilter{TenantID: exportTenant, Limit: exportLimit}
		if exportStatus != "" {
			for _, part := range strings.Split(exportStatus, ",") {
				filter.Statuses = append(filter.Statuses, model.RenewalStatus(strings.TrimSpace(part)).Expand()...)
			}
		}
		records, err := env.Store.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list records")
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		if err := report.WriteWorkbook(f, records); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", exportOut)
		}

		zap.L().Info("export complete",
			zap.String("out", exportOut),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "renewals.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "tenant id filter")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "comma-separated status filter")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum records (0 = store default)")
	rootCmd.AddCommand(exportCmd)
}
