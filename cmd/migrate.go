package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the event and version store schemas",
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

		zap.L().Info("migrations complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
