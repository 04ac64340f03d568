package cmd

import (
	"github.com/canopy-network/stacksx/app/replay"
	"github.com/canopy-network/stacksx/pkg/redis"
	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/spf13/cobra"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Append the recording to the ingestion stream for the consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer func() { _ = logger.Sync() }()

		client, err := redis.NewClient(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		stream, _ := cmd.Flags().GetString("stream")
		return run(cmd, logger, replay.NewStreamSink(client, stream))
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.Flags().String("stream", utils.Env("INGEST_STREAM", "stacks:events"), "Redis stream to append to")
}
