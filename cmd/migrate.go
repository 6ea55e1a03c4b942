package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
)

var (
	archiveFile   string
	archiveTenant string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var archiveImportCmd = &cobra.Command{
	Use:   "archive-import",
	Short: "Load prior-term snapshots into the baseline archive",
	Long:  "Reads a JSON array of policy snapshots and upserts them into the archive keyed by policy number and effective date.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var snaps []*model.Snapshot
		if err := readJSONFile(archiveFile, &snaps); err != nil {
			return err
		}
		for i, snap := range snaps {
			if snap == nil {
				return eris.Errorf("snapshot %d is null", i)
			}
			if err := snap.Validate(); err != nil {
				return eris.Wrapf(err, "snapshot %d (%s)", i, snap.Policy.PolicyNumber)
			}
		}

		env, err := initApp(ctx, "archive")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ImportArchive(ctx, archiveTenant, snaps)
		if err != nil {
			return eris.Wrap(err, "import archive")
		}
		zap.L().Info("archive import complete",
			zap.String("file", archiveFile),
			zap.Int("snapshots", len(snaps)),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func init() {
	archiveImportCmd.Flags().StringVar(&archiveFile, "file", "", "path to a JSON array of snapshots (required)")
	archiveImportCmd.Flags().StringVar(&archiveTenant, "tenant", "", "tenant id (required)")
	_ = archiveImportCmd.MarkFlagRequired("file")
	_ = archiveImportCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(migrateCmd, archiveImportCmd)
}
