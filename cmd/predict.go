package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mealphase/mealphase/dataset"
	"github.com/mealphase/mealphase/predict"
	"github.com/mealphase/mealphase/series"
	"github.com/mealphase/mealphase/server"
)

var (
	contractPath string // Contract YAML
	modelPath    string // Classifier artifact YAML
	predictInput string // Aligned CSV to classify
	predictLabel int    // Restrict to one phase label; -1 keeps every row
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Classify an aligned CSV window offline",
	Run: func(cmd *cobra.Command, args []string) {
		p, err := predict.Load(contractPath, modelPath)
		if err != nil {
			logrus.Fatalf("Loading artifacts failed: %v", err)
		}
		points, err := dataset.ReadLabeledFile(predictInput)
		if err != nil {
			logrus.Fatalf("Reading %s failed: %v", predictInput, err)
		}
		res, err := p.Predict(windowReadings(points, predictLabel))
		if err != nil {
			logrus.Fatalf("Prediction failed (%s): %v", predict.CategoryOf(err), err)
		}
		out, err := json.Marshal(server.PredictResponse{
			Prediction:  res.Label,
			Probability: res.Probability,
			Samples:     res.Samples,
		})
		if err != nil {
			logrus.Fatalf("Encoding result failed: %v", err)
		}
		fmt.Println(string(out))
	},
}

// windowReadings keeps the rows of one label (all rows when label < 0) in
// file order.
func windowReadings(points []dataset.LabeledPoint, label int) []predict.Reading {
	var readings []predict.Reading
	for _, pt := range points {
		if label >= 0 && int(pt.Label) != label {
			continue
		}
		readings = append(readings, predict.Reading{
			Timestamp: pt.Timestamp.Format(series.TimeLayout),
			HeartRate: pt.Value,
			Valid:     pt.Valid,
		})
	}
	return readings
}

func init() {
	predictCmd.Flags().StringVar(&contractPath, "contract", "contract.yaml", "Feature contract YAML")
	predictCmd.Flags().StringVar(&modelPath, "model", "model.yaml", "Classifier artifact YAML")
	predictCmd.Flags().StringVar(&predictInput, "input", "", "Aligned CSV to classify")
	predictCmd.Flags().IntVar(&predictLabel, "label", -1, "Only use rows with this label (0 or 1); -1 uses all rows")
	_ = predictCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(predictCmd)
}
