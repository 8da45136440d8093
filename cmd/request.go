package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mealphase/mealphase/dataset"
	"github.com/mealphase/mealphase/predict"
	"github.com/mealphase/mealphase/server"
)

// PredictClient posts windows to a running prediction server.
type PredictClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPredictClient creates a client for the server at baseURL.
func NewPredictClient(baseURL string, timeout time.Duration) *PredictClient {
	return &PredictClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PredictRecord captures one request-response cycle.
type PredictRecord struct {
	Status       string  `json:"status"` // "ok", "rejected", "error"
	StatusCode   int     `json:"status_code,omitempty"`
	Prediction   int     `json:"prediction"`
	Probability  float64 `json:"probability"`
	Samples      int     `json:"samples"`
	Category     string  `json:"category,omitempty"`
	ErrorMessage string  `json:"error,omitempty"`
	LatencyUs    int64   `json:"latency_us"`
}

// Send posts readings and records the outcome. Transport and server failures
// are reported in the record, not as an error.
func (c *PredictClient) Send(ctx context.Context, readings []predict.Reading) (*PredictRecord, error) {
	record := &PredictRecord{Status: "ok"}

	samples := make([]server.Sample, len(readings))
	for i, r := range readings {
		if r.Timestamp != "" {
			ts, err := json.Marshal(r.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("encoding timestamp: %w", err)
			}
			samples[i].Timestamp = ts
		}
		if r.Valid {
			samples[i].HeartRate = json.RawMessage(strconv.FormatFloat(r.HeartRate, 'g', -1, 64))
		} else {
			samples[i].HeartRate = json.RawMessage("null")
		}
	}
	bodyBytes, err := json.Marshal(server.PredictRequest{Data: &samples})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	record.LatencyUs = time.Since(start).Microseconds()
	if err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("HTTP error: %v", err)
		return record, nil
	}
	defer func() { _ = resp.Body.Close() }()
	record.StatusCode = resp.StatusCode

	bodyData, err := io.ReadAll(resp.Body)
	if err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("read error: %v", err)
		return record, nil
	}

	if resp.StatusCode != http.StatusOK {
		record.Status = "error"
		if resp.StatusCode == http.StatusBadRequest {
			record.Status = "rejected"
		}
		var failure struct {
			Error    string `json:"error"`
			Category string `json:"category"`
		}
		if json.Unmarshal(bodyData, &failure) == nil && failure.Error != "" {
			record.ErrorMessage, record.Category = failure.Error, failure.Category
		} else {
			record.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(bodyData))
		}
		return record, nil
	}

	var result server.PredictResponse
	if err := json.Unmarshal(bodyData, &result); err != nil {
		record.Status = "error"
		record.ErrorMessage = fmt.Sprintf("JSON parse error: %v", err)
		return record, nil
	}
	record.Prediction, record.Probability, record.Samples = result.Prediction, result.Probability, result.Samples
	return record, nil
}

var (
	requestURL     string        // Server base URL
	requestInput   string        // Aligned CSV to send
	requestLabel   int           // Restrict to one phase label; -1 keeps every row
	requestTimeout time.Duration // Per-request timeout
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Send an aligned CSV window to a running prediction server",
	Run: func(cmd *cobra.Command, args []string) {
		points, err := dataset.ReadLabeledFile(requestInput)
		if err != nil {
			logrus.Fatalf("Reading %s failed: %v", requestInput, err)
		}
		client := NewPredictClient(requestURL, requestTimeout)
		record, err := client.Send(cmd.Context(), windowReadings(points, requestLabel))
		if err != nil {
			logrus.Fatalf("Request failed: %v", err)
		}
		out, err := json.Marshal(record)
		if err != nil {
			logrus.Fatalf("Encoding record failed: %v", err)
		}
		fmt.Println(string(out))
		if record.Status != "ok" {
			logrus.Errorf("Server answered %d: %s", record.StatusCode, record.ErrorMessage)
		}
	},
}

func init() {
	requestCmd.Flags().StringVar(&requestURL, "url", "http://localhost:5050", "Prediction server base URL")
	requestCmd.Flags().StringVar(&requestInput, "input", "", "Aligned CSV to send")
	requestCmd.Flags().IntVar(&requestLabel, "label", -1, "Only send rows with this label (0 or 1); -1 sends all rows")
	requestCmd.Flags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "Request timeout")
	_ = requestCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(requestCmd)
}
