package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/curator-cli/internal/model"
	"github.com/sells-group/curator-cli/internal/pipeline"
)

var (
	backfillThreshold    float64
	backfillLogicVersion string
	backfillWindowStart  string
	backfillWindowEnd    string
	backfillWindowField  string
	backfillVersionID    string
	backfillPartitions   int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Re-run the pipeline over a historical window",
	Long:  "Re-drives the full QC pipeline over past events, publishing the result as a new dataset version. Previously published versions are never modified.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		events, err := openEventStore(ctx)
		if err != nil {
			return err
		}
		defer events.Close()

		versions, err := openVersionStore(ctx)
		if err != nil {
			return err
		}
		defer versions.Close()
		if err := versions.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate version store")
		}

		window, err := parseWindowFlags(backfillWindowStart, backfillWindowEnd)
		if err != nil {
			return err
		}

		ov := pipeline.Overrides{
			LogicVersion: backfillLogicVersion,
			WindowField:  model.WindowField(backfillWindowField),
			VersionID:    backfillVersionID,
			Partitions:   backfillPartitions,
		}
		if cmd.Flags().Changed("threshold") {
			ov.ConfidenceThreshold = &backfillThreshold
		}

		c := pipeline.NewCoordinator(pipeline.New(events, versions, newLineage()), defaultRunParams())
		result, err := c.Backfill(ctx, window, ov)
		if err != nil {
			return eris.Wrap(err, "backfill")
		}

		zap.L().Info("backfill complete",
			zap.String("version_id", result.Version.VersionID),
			zap.Int("accepted", len(result.Version.Accepted)),
			zap.Int("disputed", len(result.Version.Disputed)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	backfillCmd.Flags().Float64Var(&backfillThreshold, "threshold", 0, "confidence threshold override")
	backfillCmd.Flags().StringVar(&backfillLogicVersion, "logic-version", "", "resolution logic version override")
	backfillCmd.Flags().StringVar(&backfillWindowStart, "window-start", "", "time window start")
	backfillCmd.Flags().StringVar(&backfillWindowEnd, "window-end", "", "time window end")
	backfillCmd.Flags().StringVar(&backfillWindowField, "window-field", "", "window field override")
	backfillCmd.Flags().StringVar(&backfillVersionID, "version-id", "", "pin the version id instead of generating one")
	backfillCmd.Flags().IntVar(&backfillPartitions, "partitions", 0, "resolver partitions override")
	rootCmd.AddCommand(backfillCmd)
}
