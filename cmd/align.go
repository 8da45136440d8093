package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mealphase/mealphase/series"
)

var (
	sessionsPath string  // Path to a sessions.yaml batch
	single       Session // Single session assembled from flags
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Resample raw heart-rate recordings onto a labeled fixed-step grid",
	Long: "Reads an Apple Health export or a sensor log, keeps the samples inside the session window, " +
		"and writes an aligned CSV (subject_id,timestamp,heart_rate,label) holding the last known value at every step. " +
		"Use --sessions to align a batch described in YAML, or the single-session flags.",
	Run: func(cmd *cobra.Command, args []string) {
		if sessionsPath != "" {
			cfg, err := loadSessionConfig(sessionsPath)
			if err != nil {
				logrus.Fatalf("Invalid sessions file: %v", err)
			}
			for i := range cfg.Sessions {
				runAlign(&cfg.Sessions[i], cfg.TimeLayout)
			}
			return
		}
		runAlign(&single, series.TimeLayout)
	},
}

func runAlign(s *Session, layout string) {
	res, err := alignSession(s, layout)
	if err != nil {
		logrus.Fatalf("Aligning %s failed: %v", s.Input, err)
	}
	logrus.WithFields(logrus.Fields{
		"subject": s.Subject,
		"samples": res.Samples,
		"dropped": res.Dropped,
		"points":  res.Points,
	}).Infof("Wrote %s", s.Output)
	if res.Points == 0 {
		logrus.Warnf("No grid point of %s holds a value; check the session window", s.Output)
	}
}

func init() {
	alignCmd.Flags().StringVar(&sessionsPath, "sessions", "", "Path to sessions.yaml (overrides the single-session flags)")
	alignCmd.Flags().StringVar(&single.Subject, "subject", "", "Subject id written to every row")
	alignCmd.Flags().StringVar(&single.Source, "source", SourceHealthKit, "Input format (healthkit, shimmer)")
	alignCmd.Flags().StringVar(&single.QuantityType, "quantity-type", "", "HealthKit record type (default heart rate)")
	alignCmd.Flags().StringVar(&single.Input, "input", "", "Raw recording to read")
	alignCmd.Flags().StringVar(&single.Output, "output", "", "Aligned CSV to write")
	alignCmd.Flags().StringVar(&single.Start, "start", "", "Window start ("+series.TimeLayout+")")
	alignCmd.Flags().StringVar(&single.PhaseBoundary, "boundary", "", "Meal time separating label 0 from label 1")
	alignCmd.Flags().StringVar(&single.End, "end", "", "Window end")
	alignCmd.Flags().DurationVar(&single.DurationAfterBoundary, "after", 0, "Window length after the boundary (instead of --end)")
	alignCmd.Flags().DurationVar(&single.Step, "step", DefaultStep, "Grid step")
	alignCmd.Flags().DurationVar(&single.Lookback, "lookback", 0, "Include samples this long before start to seed the first grid point")

	rootCmd.AddCommand(alignCmd)
}
