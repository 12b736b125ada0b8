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
	runThreshold   float64
	runCutoff      string
	runWindowStart string
	runWindowEnd   string
	runWindowField string
	runVersionID   string
	runPartitions  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the QC pipeline and publish a dataset version",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		events, err := openEventStore(ctx)
		if err != nil {
			return err
		}
		defer events.Close()
		if err := events.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate event store")
		}

		versions, err := openVersionStore(ctx)
		if err != nil {
			return err
		}
		defer versions.Close()
		if err := versions.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate version store")
		}

		params := defaultRunParams()
		if cmd.Flags().Changed("threshold") {
			params.ConfidenceThreshold = runThreshold
		}
		if runWindowField != "" {
			params.WindowField = model.WindowField(runWindowField)
		}
		if runPartitions > 0 {
			params.Partitions = runPartitions
		}
		params.VersionID = runVersionID

		if params.EvaluationCutoff, err = parseTimeFlag(runCutoff); err != nil {
			return eris.Wrap(err, "parse cutoff")
		}
		if params.Window, err = parseWindowFlags(runWindowStart, runWindowEnd); err != nil {
			return err
		}

		p := pipeline.New(events, versions, newLineage())
		result, err := p.Run(ctx, params)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
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
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "confidence threshold override")
	runCmd.Flags().StringVar(&runCutoff, "cutoff", "", "evaluation cutoff timestamp")
	runCmd.Flags().StringVar(&runWindowStart, "window-start", "", "time window start")
	runCmd.Flags().StringVar(&runWindowEnd, "window-end", "", "time window end")
	runCmd.Flags().StringVar(&runWindowField, "window-field", "", "window field: event_time or annotation_time")
	runCmd.Flags().StringVar(&runVersionID, "version-id", "", "pin the version id instead of generating one")
	runCmd.Flags().IntVar(&runPartitions, "partitions", 0, "resolver partitions (default from config)")
	rootCmd.AddCommand(runCmd)
}
