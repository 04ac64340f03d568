package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/canopy-network/stacksx/app/replay"
	"github.com/canopy-network/stacksx/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded Stacks node events",
	Long: `Replays a recording of node observer posts, either a TSV export
(id, timestamp, path, payload) or JSON lines of {"path", "payload"},
in file order.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("file", "f", "", "recording to replay")
	rootCmd.PersistentFlags().String("format", replay.FormatAuto, "recording format: auto, tsv or jsonl")
	rootCmd.PersistentFlags().StringP("lineage", "l", "", "target lineage (default: LINEAGE)")
	rootCmd.PersistentFlags().Bool("continue-on-error", false, "log rejected events and keep going")
	_ = rootCmd.MarkPersistentFlagRequired("file")
}

// run opens the recording and replays it into sink.
func run(cmd *cobra.Command, logger *zap.Logger, sink replay.Sink) error {
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	lineage, _ := cmd.Flags().GetString("lineage")
	keepGoing, _ := cmd.Flags().GetBool("continue-on-error")

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r, err := replay.NewReader(f, replay.FormatFor(file, format))
	if err != nil {
		return err
	}

	rp := &replay.Replayer{Sink: sink, Lineage: lineage, Logger: logger, ContinueOnError: keepGoing}
	stats, err := rp.Run(cmd.Context(), r)
	logger.Info("Replay finished",
		zap.String("file", file),
		zap.Int("read", stats.Read),
		zap.Int("ingested", stats.Ingested),
		zap.Int("ignored", stats.Ignored),
		zap.Int("unknown", stats.Unknown),
		zap.Int("failed", stats.Failed),
		zap.Error(err))
	return err
}

// setup returns a signal-aware context and the replay logger.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *zap.Logger, error) {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cmd.SetContext(ctx)
	logger, err := logging.New("replay")
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, logger, nil
}
