package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealphase/mealphase/predict"
)

// PredictRequest is the body of POST /predict. Data is a pointer so a missing
// key can be told apart from an empty list.
type PredictRequest struct {
	Data *[]Sample `json:"data"`
}

// Sample is one element of PredictRequest.Data. HeartRate stays raw so that an
// absent key, a null and a non-number are distinguishable. Timestamp is never
// parsed and may hold any JSON value.
type Sample struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	HeartRate json.RawMessage `json:"heart_rate"`
}

// PredictResponse is the body of a successful prediction.
type PredictResponse struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
	Samples     int     `json:"samples"`
}

type errorBody struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

var jsonNull = []byte("null")

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, predict.Malformed("invalid request body: %v", err))
		return
	}
	if req.Data == nil {
		fail(c, predict.Malformed("Missing 'data' key"))
		return
	}
	readings, err := toReadings(*req.Data)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := s.predictor.Predict(readings)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PredictResponse{
		Prediction:  res.Label,
		Probability: res.Probability,
		Samples:     res.Samples,
	})
}

// toReadings requires at least one sample to carry a heart_rate key. Null
// heart rates become absent readings.
func toReadings(samples []Sample) ([]predict.Reading, error) {
	readings := make([]predict.Reading, len(samples))
	hasColumn := false
	for i, smp := range samples {
		readings[i].Timestamp = timestampText(smp.Timestamp)
		if len(smp.HeartRate) == 0 {
			continue
		}
		hasColumn = true
		if bytes.Equal(smp.HeartRate, jsonNull) {
			continue
		}
		var v float64
		if err := json.Unmarshal(smp.HeartRate, &v); err != nil {
			return nil, predict.Malformed("heart_rate at index %d is not a number: %s", i, smp.HeartRate)
		}
		readings[i].HeartRate, readings[i].Valid = v, true
	}
	if !hasColumn {
		return nil, predict.Malformed("missing 'heart_rate' field")
	}
	return readings, nil
}

// timestampText unquotes JSON strings and keeps any other value as its raw
// text. Absent and null timestamps become empty.
func timestampText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	return string(raw)
}

func (s *Server) handleHealth(c *gin.Context) {
	ct := s.predictor.Contract()
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"contract_version": ct.Version,
		"features":         ct.Len(),
		"training_samples": ct.Samples,
	})
}

func fail(c *gin.Context, err error) {
	category := predict.CategoryOf(err)
	status := http.StatusBadRequest
	msg := err.Error()
	if category == predict.ServerFault {
		status = http.StatusInternalServerError
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Category: string(category)})
}
