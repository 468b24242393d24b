package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"sparksales-api/pkg/models"
)

var defaultFeatureNames = []string{
	"lag_1", "lag_2", "lag_3",
	"rolling_mean_3", "rolling_std_3",
	"year", "month", "quarter",
}

// stubRegressor 入力を記録し fn の結果を返す
type stubRegressor struct {
	mu       sync.Mutex
	features []string
	fn       func(x []float64) float64
	calls    [][]float64
}

func newStubRegressor(fn func(x []float64) float64) *stubRegressor {
	if fn == nil {
		fn = func(x []float64) float64 { return x[0] }
	}
	return &stubRegressor{features: defaultFeatureNames, fn: fn}
}

func (s *stubRegressor) Name() string           { return "Stub Regressor" }
func (s *stubRegressor) FeatureNames() []string { return s.features }

func (s *stubRegressor) Predict(x []float64) (float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]float64(nil), x...))
	s.mu.Unlock()
	return s.fn(x), nil
}

func (s *stubRegressor) lastCall() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

// stubForecaster steps 件の値を start から step ずつ増やして返す
type stubForecaster struct {
	last  time.Time
	start float64
	step  float64
	err   error
	short bool
}

func (s *stubForecaster) Name() string        { return "Stub SARIMA" }
func (s *stubForecaster) LastDate() time.Time { return s.last }

func (s *stubForecaster) Forecast(steps int) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	n := steps
	if s.short {
		n--
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = s.start + s.step*float64(i)
	}
	return out, nil
}

// recorderSpy パイプラインの結果を記録する
type recorderSpy struct {
	mu      sync.Mutex
	outcome map[string][]string
}

func (r *recorderSpy) RecordPipeline(pipeline, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome == nil {
		r.outcome = make(map[string][]string)
	}
	r.outcome[pipeline] = append(r.outcome[pipeline], outcome)
}

func (r *recorderSpy) get(pipeline string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome[pipeline]
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func recordsOf(start time.Time, sales ...float64) []models.SalesRecord {
	out := make([]models.SalesRecord, len(sales))
	for i, s := range sales {
		out[i] = models.SalesRecord{Date: start.AddDate(0, 0, i), Sales: s}
	}
	return out
}

// dailyCSV 連続した日付（日/月/年）の Order Date, Sales CSV を作る
func dailyCSV(start time.Time, sales ...float64) string {
	var b strings.Builder
	b.WriteString("Order Date,Sales\n")
	for i, s := range sales {
		fmt.Fprintf(&b, "%s,%v\n", start.AddDate(0, 0, i).Format("02/01/2006"), s)
	}
	return b.String()
}
