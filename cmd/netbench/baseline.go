package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"netbench/internal/config"
	"netbench/internal/metrics"
)

func newBaselineCmd() *cobra.Command {
	baseline := &cobra.Command{
		Use:   "baseline",
		Short: "Manage the stored regression baseline",
	}
	baseline.AddCommand(newBaselineSaveCmd())
	baseline.AddCommand(newBaselineShowCmd())
	return baseline
}

func newBaselineSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Promote the last result document (output_path) to the baseline path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			doc, err := metrics.Load(cfg.OutputPath)
			if err != nil {
				return fmt.Errorf("baseline save: load result at %s: %w", cfg.OutputPath, err)
			}
			if !doc.Valid() {
				return fmt.Errorf("baseline save: %s has no valid fields, refusing to promote", cfg.OutputPath)
			}

			if err := metrics.Save(cfg.Regression.BaselinePath, doc); err != nil {
				return fmt.Errorf("baseline save: write %s: %w", cfg.Regression.BaselinePath, err)
			}
			log.WithField("path", cfg.Regression.BaselinePath).Info("baseline saved")
			return nil
		},
	}
}

func newBaselineShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored baseline's summary metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			doc, err := metrics.Load(cfg.Regression.BaselinePath)
			if err != nil {
				return fmt.Errorf("baseline show: load %s: %w", cfg.Regression.BaselinePath, err)
			}

			fmt.Printf("pps=%.2f mbps=%.4f p95_ns=%d processed=%d\n",
				doc.Packets.RatePPS, doc.Bytes.RateMbps, doc.LatencyNS.P95, doc.Packets.Processed)
			return nil
		},
	}
}
