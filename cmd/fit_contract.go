package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mealphase/mealphase/contract"
	"github.com/mealphase/mealphase/dataset"
	"github.com/mealphase/mealphase/features"
)

var (
	contractOutput   string // Contract YAML to write
	fitSegmentsTable string // Optional segment table written alongside
	fitFromSegments  string // Segment table to fit on instead of aligned sessions
)

var fitContractCmd = &cobra.Command{
	Use:   "fit-contract [aligned.csv...] | --from-segments table.csv",
	Short: "Learn the standardization contract from aligned training sessions",
	Long: "Extracts the descriptor vector of every session phase and freezes their order, " +
		"per-descriptor mean and population scale, and the extractor parameters into a contract YAML. " +
		"A classifier trained on the same segments must be served with this contract. " +
		"With --from-segments the vectors come from a table written by the segments command, " +
		"which must have used the same --pnn50-threshold.",
	Run: func(cmd *cobra.Command, args []string) {
		ex := features.Extractor{PNN50Threshold: pnn50Threshold}
		segs, err := fitSegments(args, fitFromSegments, ex)
		if err != nil {
			logrus.Fatalf("Building segments failed: %v", err)
		}
		c, err := contract.Fit(dataset.Vectors(segs), ex)
		if err != nil {
			logrus.Fatalf("Fitting contract failed: %v", err)
		}
		if err := c.Save(contractOutput); err != nil {
			logrus.Fatalf("Saving contract failed: %v", err)
		}
		logrus.Infof("Wrote contract over %d segments to %s", c.Samples, contractOutput)

		if fitSegmentsTable != "" && fitFromSegments == "" {
			if err := dataset.WriteSegmentsFile(fitSegmentsTable, segs); err != nil {
				logrus.Fatalf("Writing %s failed: %v", fitSegmentsTable, err)
			}
		}
	},
}

// fitSegments returns the training segments either from aligned sessions or,
// when table is set, from a previously written segment table.
func fitSegments(paths []string, table string, ex features.Extractor) ([]dataset.Segment, error) {
	switch {
	case table != "" && len(paths) > 0:
		return nil, fmt.Errorf("aligned sessions and --from-segments are mutually exclusive")
	case table != "":
		return dataset.ReadSegmentsFile(table)
	case len(paths) == 0:
		return nil, fmt.Errorf("no aligned sessions given")
	}
	return collectSegments(paths, ex)
}

func init() {
	fitContractCmd.Flags().StringVar(&contractOutput, "output", "contract.yaml", "Contract YAML to write")
	fitContractCmd.Flags().StringVar(&fitSegmentsTable, "segments", "", "Also write the segment table the contract was fitted on")
	fitContractCmd.Flags().StringVar(&fitFromSegments, "from-segments", "", "Fit on an existing segment table instead of aligned sessions")
	fitContractCmd.Flags().Float64Var(&pnn50Threshold, "pnn50-threshold", features.DefaultPNN50Threshold, "pnn50 successive-difference threshold (bpm)")

	rootCmd.AddCommand(fitContractCmd)
}
