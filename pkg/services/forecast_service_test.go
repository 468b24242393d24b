package services

import (
	"strings"
	"testing"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(reg Regressor, fc SeriesForecaster) (*ForecastService, *recorderSpy) {
	spy := &recorderSpy{}
	adapter := NewForecastAdapter(reg, fc, 365)
	return NewForecastService(adapter, models.DefaultRuleTable(), DefaultMinRows, spy, nil), spy
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestCSVPipelineIncreasingSeries(t *testing.T) {
	// lag_1 の 1.1 倍を返すモデル
	reg := newStubRegressor(func(x []float64) float64 { return x[0] * 1.1 })
	svc, spy := newTestService(reg, nil)

	resp, err := svc.CSV(strings.NewReader(dailyCSV(day(2024, 1, 1), 100, 110, 120, 130, 140)), "sales.csv")
	require.NoError(t, err)

	// 最後の完全な行（1月5日）の lag_1 は 130
	assert.Equal(t, 143.0, resp.PredictedSales)
	assert.Equal(t, resp.PredictedSales, resp.ExpectedRevenue)
	assert.Equal(t, []float64{130, 120, 110, 130, 10, 2024, 1, 1}, reg.lastCall())
	assert.Equal(t, "Stub Regressor", resp.ModelUsed)
	assert.NotEmpty(t, resp.Disclaimer)

	assert.Equal(t, []string{"2024-01"}, resp.Trend.Dates)
	assert.Equal(t, []float64{600}, resp.Trend.Sales)
	assert.Equal(t, []float64{0}, resp.Trend.Growth)

	assert.Equal(t, 600.0, resp.Kpis.TotalSales)
	assert.Equal(t, 120.0, resp.Kpis.AvgSales)
	assert.Equal(t, 140.0, resp.Kpis.LatestSales)
	assert.Equal(t, 7.69, resp.Kpis.GrowthPct)

	require.Len(t, resp.Insights, 4)
	assert.Contains(t, resp.Insights[0], "increasing")
	assert.Equal(t, []string{"success"}, spy.get(PipelineCSV))
}

func TestCSVPipelineMissingSalesColumn(t *testing.T) {
	svc, spy := newTestService(newStubRegressor(nil), nil)

	for _, data := range []string{
		"Order Date,Revenue\n01/01/2024,1\n",
		"date,qty,price\n01/01/2024,1,2\n02/01/2024,3,4\n",
	} {
		_, err := svc.CSV(strings.NewReader(data), "sales.csv")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeSchema))
		_, msg := apperrors.Public(err)
		assert.Contains(t, msg, "sales")
	}
	assert.Equal(t, []string{"SCHEMA_ERROR", "SCHEMA_ERROR"}, spy.get(PipelineCSV))
}

func TestCSVPipelineInsufficientRows(t *testing.T) {
	svc, _ := newTestService(newStubRegressor(nil), nil)

	data := dailyCSV(day(2024, 1, 1), 1, 2, 3, 4) + "garbage,5\n"
	_, err := svc.CSV(strings.NewReader(data), "sales.csv")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeEmptyResult))
	assert.Contains(t, err.Error(), "insufficient data")
}

func TestCSVPipelineRejectsMismatchedModel(t *testing.T) {
	reg := newStubRegressor(nil)
	reg.features = []string{"lag_1", "lag_2", "lag_7"}
	svc, spy := newTestService(reg, nil)

	_, err := svc.CSV(strings.NewReader(dailyCSV(day(2024, 1, 1), 1, 2, 3, 4, 5)), "sales.csv")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelInput))
	assert.Empty(t, reg.calls)
	assert.Equal(t, []string{"MODEL_INPUT_ERROR"}, spy.get(PipelineCSV))
}

func TestManualPipeline(t *testing.T) {
	reg := newStubRegressor(func(x []float64) float64 { return x[3] })
	svc, _ := newTestService(reg, nil)

	resp, err := svc.Manual(models.ManualForecastRequest{
		Lag1:  floatPtr(30),
		Lag2:  floatPtr(20),
		Lag3:  floatPtr(10),
		Year:  intPtr(2024),
		Month: intPtr(8),
	})
	require.NoError(t, err)

	assert.Equal(t, 20.0, resp.PredictedSales)
	assert.Equal(t, 20.0, resp.RollingMean)
	assert.Equal(t, 10.0, resp.RollingStd)
	assert.Equal(t, "Stub Regressor", resp.ModelUsed)
	// quarter は month から求める
	assert.Equal(t, []float64{30, 20, 10, 20, 10, 2024, 8, 3}, reg.lastCall())
}

func TestManualPipelineNeverZeroFills(t *testing.T) {
	reg := newStubRegressor(nil)
	svc, _ := newTestService(reg, nil)

	_, err := svc.Manual(models.ManualForecastRequest{
		Lag1:  floatPtr(30),
		Lag3:  floatPtr(10),
		Year:  intPtr(2024),
		Month: intPtr(8),
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSchema))
	assert.Contains(t, err.Error(), "lag_2")
	assert.Empty(t, reg.calls)

	// 明示的な0は有効な値
	_, err = svc.Manual(models.ManualForecastRequest{
		Lag1: floatPtr(0), Lag2: floatPtr(0), Lag3: floatPtr(0),
		Year: intPtr(2024), Month: intPtr(1), Quarter: intPtr(1),
	})
	assert.NoError(t, err)
}

func TestManualPipelineValidatesCalendar(t *testing.T) {
	svc, _ := newTestService(newStubRegressor(nil), nil)
	base := func() models.ManualForecastRequest {
		return models.ManualForecastRequest{
			Lag1: floatPtr(1), Lag2: floatPtr(2), Lag3: floatPtr(3),
			Year: intPtr(2024), Month: intPtr(5),
		}
	}

	req := base()
	req.Month = intPtr(13)
	_, err := svc.Manual(req)
	assert.True(t, apperrors.Is(err, apperrors.CodeParse))

	req = base()
	req.Quarter = intPtr(5)
	_, err = svc.Manual(req)
	assert.True(t, apperrors.Is(err, apperrors.CodeParse))
}

const segmentUpload = "Order Date,Region,Category,Sub-Category,Sales\n" +
	"01/01/2024,East,Technology,Phones,100\n" +
	"02/01/2024,East,Technology,Phones,110\n" +
	"03/01/2024,West,Furniture,Chairs,999\n" +
	"04/01/2024,East,Technology,Phones,120\n" +
	"05/01/2024,East,Technology,Phones,130\n" +
	"06/01/2024,East,Technology,Phones,140\n"

func TestSegmentedPipeline(t *testing.T) {
	reg := newStubRegressor(func(x []float64) float64 { return x[0] })
	svc, _ := newTestService(reg, nil)

	resp, err := svc.Segmented(strings.NewReader(segmentUpload), "seg.csv", models.SegmentFilter{Region: "East", Category: "Technology"})
	require.NoError(t, err)

	assert.Equal(t, "Segment-wise Sales Forecast", resp.ForecastType)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-04", "2024-01-05", "2024-01-06"}, resp.Trend.Dates)
	assert.Equal(t, []float64{100, 110, 120, 130, 140}, resp.Trend.Sales)
	// 最後の予測値は lag_1 = 130
	assert.Equal(t, []float64{133.9, 137.8, 141.7, 145.6, 149.5}, resp.ForecastQuantity)
	assert.Equal(t, 600.0, resp.Kpis.TotalSales)
	assert.Len(t, reg.calls, 2)
}

func TestSegmentedPipelineErrors(t *testing.T) {
	svc, spy := newTestService(newStubRegressor(nil), nil)

	_, err := svc.Segmented(strings.NewReader(segmentUpload), "seg.csv", models.SegmentFilter{Region: "North"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeEmptyResult))
	assert.Contains(t, err.Error(), "no data for selected segment")

	_, err = svc.Segmented(strings.NewReader(segmentUpload), "seg.csv", models.SegmentFilter{Region: "West"})
	assert.True(t, apperrors.Is(err, apperrors.CodeEmptyResult))

	_, err = svc.Segmented(strings.NewReader(dailyCSV(day(2024, 1, 1), 1, 2, 3, 4)), "seg.csv", models.SegmentFilter{})
	assert.True(t, apperrors.Is(err, apperrors.CodeSchema))

	assert.Equal(t, []string{"EMPTY_RESULT", "EMPTY_RESULT", "SCHEMA_ERROR"}, spy.get(PipelineSegmented))
}

func TestTimeSeriesPipeline(t *testing.T) {
	fc := &stubForecaster{last: day(2024, 2, 28), start: 100, step: 5}
	svc, _ := newTestService(nil, fc)

	resp, err := svc.TimeSeries(DefaultForecastSteps)
	require.NoError(t, err)

	assert.Equal(t, "Stub SARIMA", resp.Model)
	assert.Equal(t, "7 days", resp.ForecastHorizon)
	assert.Equal(t, []string{"2024-02-29", "2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06"}, resp.FutureDates)
	assert.Equal(t, []float64{100, 105, 110, 115, 120, 125, 130}, resp.Forecast)
	assert.Equal(t, "Step 1: 100", resp.StepsBreakdown[0])
	assert.Equal(t, "Step 7: 130", resp.StepsBreakdown[6])
	assert.Contains(t, resp.Insight, "Increasing")
}

func TestHorizonInsight(t *testing.T) {
	assert.Contains(t, horizonInsight([]float64{100, 100, 100}), "Stable")
	assert.Contains(t, horizonInsight([]float64{100, 100.1, 100.2}), "Stable")
	assert.Contains(t, horizonInsight([]float64{100, 90, 80}), "Declining")
	assert.Contains(t, horizonInsight([]float64{-100, -90, -80}), "Increasing")
	assert.Contains(t, horizonInsight([]float64{5}), "Stable")
}

func TestTimeSeriesPipelineErrors(t *testing.T) {
	svc, spy := newTestService(nil, nil)
	_, err := svc.TimeSeries(7)
	assert.True(t, apperrors.Is(err, apperrors.CodeModelUnavailable))

	svc, _ = newTestService(nil, &stubForecaster{last: day(2024, 1, 1)})
	_, err = svc.TimeSeries(0)
	assert.True(t, apperrors.Is(err, apperrors.CodeParse))
	_, err = svc.TimeSeries(366)
	assert.True(t, apperrors.Is(err, apperrors.CodeParse))

	assert.Equal(t, []string{"MODEL_UNAVAILABLE"}, spy.get(PipelineTimeSeries))
}
