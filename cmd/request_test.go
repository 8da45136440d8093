package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealphase/mealphase/dataset"
	"github.com/mealphase/mealphase/predict"
	"github.com/mealphase/mealphase/server"
)

func newPredictionServer(t *testing.T) (*httptest.Server, *predict.Predictor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p, err := predict.Load(filepath.Join("..", "testdata", "contract.yaml"), filepath.Join("..", "testdata", "model.yaml"))
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(p).Handler())
	t.Cleanup(srv.Close)
	return srv, p
}

func TestPredictClient_RoundTripMatchesOffline(t *testing.T) {
	// GIVEN a running server and an aligned window with one absent reading
	srv, p := newPredictionServer(t)
	readings := []predict.Reading{
		{Timestamp: "2025-04-01 12:00:00", HeartRate: 70, Valid: true},
		{Timestamp: "2025-04-01 12:00:10"},
		{Timestamp: "2025-04-01 12:00:20", HeartRate: 74.5, Valid: true},
		{Timestamp: "2025-04-01 12:00:30", HeartRate: 71, Valid: true},
	}
	want, err := p.Predict(readings)
	require.NoError(t, err)

	// WHEN sending it over HTTP
	record, err := NewPredictClient(srv.URL+"/", 5*time.Second).Send(context.Background(), readings)
	require.NoError(t, err)

	// THEN the server answers exactly what the offline path computes
	assert.Equal(t, "ok", record.Status)
	assert.Equal(t, http.StatusOK, record.StatusCode)
	assert.Equal(t, want.Label, record.Prediction)
	assert.Equal(t, want.Probability, record.Probability)
	assert.Equal(t, 3, record.Samples)
}

func TestPredictClient_RejectedWindow(t *testing.T) {
	srv, _ := newPredictionServer(t)

	record, err := NewPredictClient(srv.URL, 5*time.Second).Send(context.Background(), []predict.Reading{
		{HeartRate: 70, Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "rejected", record.Status)
	assert.Equal(t, http.StatusBadRequest, record.StatusCode)
	assert.Equal(t, string(predict.BadRequest), record.Category)
	assert.Contains(t, record.ErrorMessage, "insufficient")
}

func TestPredictClient_NonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]json.RawMessage
		if json.Unmarshal(body, &req) != nil || req["data"] == nil {
			t.Errorf("request body lacks data: %s", body)
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	record, err := NewPredictClient(srv.URL, 5*time.Second).Send(context.Background(), []predict.Reading{
		{HeartRate: 70, Valid: true}, {HeartRate: 71, Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "error", record.Status)
	assert.Equal(t, http.StatusBadGateway, record.StatusCode)
	assert.Contains(t, record.ErrorMessage, "HTTP 502")
}

func TestPredictClient_EncodesTimestampsAsStrings(t *testing.T) {
	// GIVEN a server that records the request body
	var got struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decoding %s: %v", body, err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"prediction":0,"probability":0.1,"samples":2}`))
	}))
	defer srv.Close()

	// WHEN sending one stamped and one unstamped reading
	_, err := NewPredictClient(srv.URL, 5*time.Second).Send(context.Background(), []predict.Reading{
		{Timestamp: "2025-04-01 12:00:00", HeartRate: 70, Valid: true},
		{HeartRate: 71, Valid: true},
	})
	require.NoError(t, err)

	// THEN the stamp is a JSON string and the missing one is left out
	require.Len(t, got.Data, 2)
	assert.JSONEq(t, `"2025-04-01 12:00:00"`, string(got.Data[0]["timestamp"]))
	assert.NotContains(t, got.Data[1], "timestamp")
	assert.JSONEq(t, `71`, string(got.Data[1]["heart_rate"]))
}

func TestPredictClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	record, err := NewPredictClient(url, time.Second).Send(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "error", record.Status)
	assert.Contains(t, record.ErrorMessage, "HTTP error")
}

func TestWindowReadings_FiltersLabelInFileOrder(t *testing.T) {
	points, err := dataset.ReadLabeled(strings.NewReader(`subject_id,timestamp,heart_rate,label
s,2025-04-01 11:59:50,70,0
s,2025-04-01 12:00:00,,1
s,2025-04-01 12:00:10,84,1
`))
	require.NoError(t, err)

	post := windowReadings(points, 1)
	require.Len(t, post, 2)
	assert.Equal(t, predict.Reading{Timestamp: "2025-04-01 12:00:00"}, post[0])
	assert.Equal(t, predict.Reading{Timestamp: "2025-04-01 12:00:10", HeartRate: 84, Valid: true}, post[1])

	assert.Len(t, windowReadings(points, -1), 3)
}
