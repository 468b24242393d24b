package services

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullVector() models.FeatureVector {
	return models.FeatureVector{
		"lag_1": 130, "lag_2": 120, "lag_3": 110,
		"rolling_mean_3": 130, "rolling_std_3": 10,
		"year": 2024, "month": 4, "quarter": 2,
	}
}

func TestPredictPointOrdersByDeclaredFeatures(t *testing.T) {
	reg := newStubRegressor(func(x []float64) float64 { return x[0] + x[7] })
	adapter := NewForecastAdapter(reg, nil, 0)

	// 宣言された特徴量集合とアダプタの期待キーは一致する
	assert.ElementsMatch(t, reg.FeatureNames(), NewFeatureEngineer().FeatureNames())
	assert.Equal(t, reg.FeatureNames(), adapter.ExpectedFeatures())

	pred, err := adapter.PredictPoint(fullVector())
	require.NoError(t, err)
	assert.Equal(t, 132.0, pred)
	assert.Equal(t, []float64{130, 120, 110, 130, 10, 2024, 4, 2}, reg.lastCall())
}

func TestPredictPointRejectsMismatchedKeys(t *testing.T) {
	adapter := NewForecastAdapter(newStubRegressor(nil), nil, 0)

	missing := fullVector()
	delete(missing, "lag_3")
	_, err := adapter.PredictPoint(missing)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelInput))
	assert.Contains(t, err.Error(), "lag_3")

	extra := fullVector()
	extra["lag_4"] = 1
	_, err = adapter.PredictPoint(extra)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelInput))
	assert.Contains(t, err.Error(), "lag_4")

	nan := fullVector()
	nan["rolling_std_3"] = math.NaN()
	_, err = adapter.PredictPoint(nan)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelInput))
}

func TestPredictPointWithoutModel(t *testing.T) {
	adapter := NewForecastAdapter(nil, nil, 0)
	assert.False(t, adapter.HasRegressor())
	assert.Empty(t, adapter.RegressorName())

	_, err := adapter.PredictPoint(fullVector())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelUnavailable))

	_, err = adapter.ForecastHorizon(3)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelUnavailable))
}

func TestPredictPointNonFiniteOutput(t *testing.T) {
	adapter := NewForecastAdapter(newStubRegressor(func([]float64) float64 { return math.Inf(1) }), nil, 0)
	_, err := adapter.PredictPoint(fullVector())
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))
}

func TestForecastHorizonDatesFromFittedEnd(t *testing.T) {
	last := time.Date(2024, 12, 30, 18, 30, 0, 0, time.UTC)
	adapter := NewForecastAdapter(nil, &stubForecaster{last: last, start: 10, step: 1}, 30)

	first, err := adapter.ForecastHorizon(3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 12, 31), day(2025, 1, 1), day(2025, 1, 2)}, first.Dates)
	assert.Equal(t, []float64{10, 11, 12}, first.Values)

	// 呼び出しのたびに起点が進むことはない
	second, err := adapter.ForecastHorizon(3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestForecastHorizonConcurrentCallsAgree(t *testing.T) {
	adapter := NewForecastAdapter(nil, &stubForecaster{last: day(2024, 6, 1), start: 1, step: 1}, 0)

	var wg sync.WaitGroup
	results := make([]models.HorizonForecast, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := adapter.ForecastHorizon(5)
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range results[1:] {
		assert.Equal(t, results[0].Dates, h.Dates)
	}
	assert.Equal(t, day(2024, 6, 2), results[0].Dates[0])
}

func TestForecastHorizonValidation(t *testing.T) {
	adapter := NewForecastAdapter(nil, &stubForecaster{last: day(2024, 1, 1)}, 10)

	for _, steps := range []int{0, -1, 11} {
		_, err := adapter.ForecastHorizon(steps)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeParse), "steps=%d", steps)
	}

	short := NewForecastAdapter(nil, &stubForecaster{last: day(2024, 1, 1), short: true}, 0)
	_, err := short.ForecastHorizon(4)
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))

	failing := NewForecastAdapter(nil, &stubForecaster{err: errors.New("boom")}, 0)
	_, err = failing.ForecastHorizon(2)
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))
}
