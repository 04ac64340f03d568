package cmd

import (
	"github.com/canopy-network/stacksx/app/pipeline"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the recording directly into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer func() { _ = logger.Sync() }()

		p, err := pipeline.Build(ctx, logger, pipeline.Options{Component: "replay"})
		if err != nil {
			return err
		}
		defer p.Close()

		return run(cmd, logger, p.Ingestor)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
