package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/pkg/detectors/zscore"
	"github.com/hed1ad/streamguard/pkg/io/plot"
	"github.com/hed1ad/streamguard/pkg/synth"
)

func newDemoCommand(a *app) *cobra.Command {
	var (
		points   int
		plotPath string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the detector on a generated stream",
		Long: `Generate a seasonal stream with spikes, detect anomalies in it and
print the flagged indices next to the injected ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, truth := synth.New().GenerateWithTruth(points)

			anomalies, err := zscore.Detect(stream,
				zscore.WithConfig(a.cfg.Detector),
				zscore.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			a.logger.Debug("demo stream generated", zap.Int("points", points), zap.Ints("spikes", truth))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Anomalies detected at indices: %v\n", anomalies)
			fmt.Fprintf(out, "Spikes injected at indices:   %v\n", truth)

			if plotPath != "" {
				if err := plot.Save(plotPath, stream, anomalies); err != nil {
					return fmt.Errorf("writing plot: %w", err)
				}
				fmt.Fprintf(out, "Plot written to %s\n", plotPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&points, "points", 1000, "Number of samples to generate")
	cmd.Flags().StringVar(&plotPath, "plot", "", "Write a chart of the stream and anomalies to this file (.png, .svg)")
	addDetectorFlags(cmd)

	return cmd
}
