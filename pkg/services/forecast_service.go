package services

import (
	"fmt"
	"io"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/logger"
	"sparksales-api/pkg/models"
)

const (
	// DefaultMinRows CSV予測に必要なクレンジング後の最小行数
	DefaultMinRows = 5
	// DefaultForecastSteps 時系列予測の既定ステップ数
	DefaultForecastSteps = 7
	// SegmentHorizon セグメント予測で返す数量の件数
	SegmentHorizon = 5
	// segmentGrowthStep セグメント予測の1ステップあたりの伸び率
	segmentGrowthStep = 0.03
	// slopeThresholdRatio 時系列トレンド判定の傾きの閾値（予測平均に対する比率）
	slopeThresholdRatio = 0.002
)

const (
	PipelineManual     = "manual"
	PipelineCSV        = "csv"
	PipelineSegmented  = "segmented"
	PipelineTimeSeries = "timeseries"
)

const (
	manualNote        = "Rolling statistics are computed from the three supplied lag values."
	csvDisclaimer     = "Predictions are based on historical sales patterns and may vary."
	segmentedTypeName = "Segment-wise Sales Forecast"
)

// PipelineRecorder パイプラインの実行結果を受け取る
type PipelineRecorder interface {
	RecordPipeline(pipeline, outcome string)
}

// ForecastService は手入力・CSV・セグメント・時系列の各予測パイプラインをまとめたサービスです。
type ForecastService struct {
	adapter  *ForecastAdapter
	loader   *CsvLoader
	features *FeatureEngineer
	trend    *TrendComputer
	kpis     *KpiComputer
	insights *InsightGenerator
	recorder PipelineRecorder
	log      *logger.Logger
	minRows  int
}

// NewForecastService 新しい予測サービスを作成
func NewForecastService(adapter *ForecastAdapter, rules models.RuleTable, minRows int, recorder PipelineRecorder, log *logger.Logger) *ForecastService {
	if minRows <= 0 {
		minRows = DefaultMinRows
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ForecastService{
		adapter:  adapter,
		loader:   NewCsvLoader(log),
		features: NewFeatureEngineer(),
		trend:    NewTrendComputer(),
		kpis:     NewKpiComputer(rules),
		insights: NewInsightGenerator(rules),
		recorder: recorder,
		log:      log,
		minRows:  minRows,
	}
}

// Adapter モデルアダプタを返す
func (s *ForecastService) Adapter() *ForecastAdapter {
	return s.adapter
}

func (s *ForecastService) record(pipeline string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if e := apperrors.As(err); e != nil {
			outcome = string(e.Code())
		}
		s.log.WithError(err).WithField("pipeline", pipeline).Warn("予測パイプラインが失敗しました")
	}
	if s.recorder != nil {
		s.recorder.RecordPipeline(pipeline, outcome)
	}
}

// Manual は手入力された3つのラグとカレンダー情報から売上を予測します。
// 必須フィールドが欠けている場合は0で補わずにスキーマエラーを返します。
func (s *ForecastService) Manual(req models.ManualForecastRequest) (resp models.ManualForecastResponse, err error) {
	defer func() { s.record(PipelineManual, err) }()

	required := []struct {
		name    string
		present bool
	}{
		{"lag_1", req.Lag1 != nil},
		{"lag_2", req.Lag2 != nil},
		{"lag_3", req.Lag3 != nil},
		{"year", req.Year != nil},
		{"month", req.Month != nil},
	}
	for _, f := range required {
		if !f.present {
			return resp, apperrors.Schema("missing required field: %s", f.name)
		}
	}
	if *req.Month < 1 || *req.Month > 12 {
		return resp, apperrors.Parse("month must be between 1 and 12, got %d", *req.Month)
	}
	quarter := quarterOf(*req.Month)
	if req.Quarter != nil {
		if *req.Quarter < 1 || *req.Quarter > 4 {
			return resp, apperrors.Parse("quarter must be between 1 and 4, got %d", *req.Quarter)
		}
		quarter = *req.Quarter
	}

	lags := []float64{*req.Lag1, *req.Lag2, *req.Lag3}
	rollingMean := mean(lags)
	rollingStd := sampleStdDev(lags)
	row := models.FeatureRow{
		Lags:         map[int]*float64{1: req.Lag1, 2: req.Lag2, 3: req.Lag3},
		RollingMean3: &rollingMean,
		RollingStd3:  &rollingStd,
		Year:         *req.Year,
		Month:        *req.Month,
		Quarter:      quarter,
	}
	vec, err := s.features.Vector(row)
	if err != nil {
		return resp, err
	}
	pred, err := s.adapter.PredictPoint(vec)
	if err != nil {
		return resp, err
	}

	return models.ManualForecastResponse{
		PredictedSales: round2(pred),
		RollingMean:    round2(rollingMean),
		RollingStd:     round2(rollingStd),
		ModelUsed:      s.adapter.RegressorName(),
		Note:           manualNote,
	}, nil
}

// CSV はアップロードされた売上データの最新行から次期の売上を予測し、
// 月次トレンド・KPI・インサイトを合わせて返します。
func (s *ForecastService) CSV(r io.Reader, fileName string) (resp models.CSVForecastResponse, err error) {
	defer func() { s.record(PipelineCSV, err) }()

	frame, _, err := s.loader.Load(r, fileName)
	if err != nil {
		return resp, err
	}
	if frame.Len() < s.minRows {
		return resp, apperrors.EmptyResult("insufficient data for prediction: %d usable rows, at least %d required", frame.Len(), s.minRows)
	}

	sales := frame.Sales()
	summary := s.trend.MonthlyTrend(frame.Records)
	kpis, err := s.kpis.Compute(sales)
	if err != nil {
		return resp, err
	}

	rows, err := s.features.BuildFeatureRows(frame.Records, StrictFeatures)
	if err != nil {
		return resp, err
	}
	rows = s.features.CompleteRows(rows)
	if len(rows) == 0 {
		return resp, apperrors.EmptyResult("not enough history after feature engineering")
	}
	vec, err := s.features.Vector(rows[len(rows)-1])
	if err != nil {
		return resp, err
	}
	pred, err := s.adapter.PredictPoint(vec)
	if err != nil {
		return resp, err
	}

	insights := s.insights.Generate(sales, pred, kpis)
	s.log.WithFields(map[string]interface{}{
		"rows":       frame.Len(),
		"model_rows": len(rows),
		"predicted":  round2(pred),
	}).Info("CSV予測が完了しました")

	return models.CSVForecastResponse{
		PredictedSales:  round2(pred),
		ExpectedRevenue: round2(pred),
		Trend:           s.trend.Series(summary),
		Kpis:            kpis,
		Insights:        models.InsightTexts(insights),
		ModelUsed:       s.adapter.RegressorName(),
		Disclaimer:      csvDisclaimer,
	}, nil
}

// Segmented は指定セグメントに絞り込んだデータで予測し、
// 直近の予測値から5期先までの数量を3%ずつ伸ばして返します。
func (s *ForecastService) Segmented(r io.Reader, fileName string, filter models.SegmentFilter) (resp models.SegmentedForecastResponse, err error) {
	defer func() { s.record(PipelineSegmented, err) }()

	frame, _, err := s.loader.Load(r, fileName)
	if err != nil {
		return resp, err
	}
	segment, err := FilterSegment(frame, filter)
	if err != nil {
		return resp, err
	}
	if segment.Len() == 0 {
		return resp, apperrors.EmptyResult("no data for selected segment")
	}

	rows, err := s.features.BuildFeatureRows(segment.Records, StrictFeatures)
	if err != nil {
		return resp, err
	}
	rows = s.features.CompleteRows(rows)
	if len(rows) == 0 {
		return resp, apperrors.EmptyResult("insufficient data after feature engineering")
	}

	var lastPred float64
	for _, row := range rows {
		vec, err := s.features.Vector(row)
		if err != nil {
			return resp, err
		}
		if lastPred, err = s.adapter.PredictPoint(vec); err != nil {
			return resp, err
		}
	}

	quantities := make([]float64, SegmentHorizon)
	for i := range quantities {
		quantities[i] = round2(lastPred * (1 + segmentGrowthStep*float64(i+1)))
	}

	kpis, err := s.kpis.Compute(segment.Sales())
	if err != nil {
		return resp, err
	}

	return models.SegmentedForecastResponse{
		ForecastType:     segmentedTypeName,
		Trend:            s.trend.DailySeries(segment.Records),
		ForecastQuantity: quantities,
		Kpis:             kpis,
	}, nil
}

// TimeSeries は時系列モデルで steps 日先まで予測し、予測値の傾きからトレンドを判定します。
func (s *ForecastService) TimeSeries(steps int) (resp models.TimeSeriesForecastResponse, err error) {
	defer func() { s.record(PipelineTimeSeries, err) }()

	horizon, err := s.adapter.ForecastHorizon(steps)
	if err != nil {
		return resp, err
	}

	dates := make([]string, len(horizon.Dates))
	for i, d := range horizon.Dates {
		dates[i] = d.Format("2006-01-02")
	}
	breakdown := make([]string, len(horizon.Values))
	for i, v := range horizon.Values {
		breakdown[i] = fmt.Sprintf("Step %d: %s", i+1, formatRounded(v, 3))
	}
	name, _ := s.adapter.ForecasterInfo()

	return models.TimeSeriesForecastResponse{
		Model:           name,
		ForecastHorizon: fmt.Sprintf("%d days", steps),
		FutureDates:     dates,
		Forecast:        round2All(horizon.Values),
		StepsBreakdown:  breakdown,
		Insight:         horizonInsight(horizon.Values),
	}, nil
}

// horizonInsight 予測値の一次回帰の傾きを予測平均の0.2%と比べてトレンドを判定
func horizonInsight(values []float64) string {
	slope := linearSlope(values)
	threshold := mean(values) * slopeThresholdRatio
	if threshold < 0 {
		threshold = -threshold
	}
	switch {
	case slope > threshold:
		return "Trend detected: Increasing. Overall sales momentum is rising despite seasonal fluctuations."
	case slope < -threshold:
		return "Trend detected: Declining. Overall sales momentum is weakening across the forecast horizon."
	default:
		return "Trend detected: Stable. Sales demand is stable with normal seasonal oscillations."
	}
}
