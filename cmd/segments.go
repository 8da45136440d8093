package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mealphase/mealphase/dataset"
	"github.com/mealphase/mealphase/features"
)

var (
	segmentsOutput string  // Segment table to write
	pnn50Threshold float64 // Successive-difference threshold for pnn50
)

var segmentsCmd = &cobra.Command{
	Use:   "segments [aligned.csv...]",
	Short: "Extract one descriptor vector per session phase",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		segs, err := collectSegments(args, features.Extractor{PNN50Threshold: pnn50Threshold})
		if err != nil {
			logrus.Fatalf("Building segments failed: %v", err)
		}
		if err := dataset.WriteSegmentsFile(segmentsOutput, segs); err != nil {
			logrus.Fatalf("Writing %s failed: %v", segmentsOutput, err)
		}
		logrus.Infof("Wrote %d segments from %d sessions to %s", len(segs), len(args), segmentsOutput)
	},
}

// collectSegments reads every aligned CSV and concatenates its segments,
// logging the phases that had to be skipped.
func collectSegments(paths []string, ex features.Extractor) ([]dataset.Segment, error) {
	var all []dataset.Segment
	for _, path := range paths {
		points, err := dataset.ReadLabeledFile(path)
		if err != nil {
			return nil, err
		}
		segs, warnings, err := dataset.Segments(points, filepath.Base(path), ex)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			logrus.Warnf("Skipping segment: %s", w)
		}
		all = append(all, segs...)
	}
	return all, nil
}

func init() {
	segmentsCmd.Flags().StringVar(&segmentsOutput, "output", "segments.csv", "Segment table to write")
	segmentsCmd.Flags().Float64Var(&pnn50Threshold, "pnn50-threshold", features.DefaultPNN50Threshold, "pnn50 successive-difference threshold (bpm)")

	rootCmd.AddCommand(segmentsCmd)
}
