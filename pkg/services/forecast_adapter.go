package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"
)

// Regressor は学習済みの点予測モデルです。
// 構築後は並行に呼び出しても安全であること。
type Regressor interface {
	Name() string
	// FeatureNames Predict に渡す特徴量の順序
	FeatureNames() []string
	Predict(features []float64) (float64, error)
}

// SeriesForecaster は学習済みの時系列モデルです。
// LastDate は学習系列の最終日で、変化しません。
type SeriesForecaster interface {
	Name() string
	LastDate() time.Time
	Forecast(steps int) ([]float64, error)
}

// ForecastAdapter は外部で学習したモデルへの読み取り専用の窓口です。
// 全リクエストで共有されます。
type ForecastAdapter struct {
	regressor  Regressor
	forecaster SeriesForecaster
	expected   map[string]struct{}
	maxSteps   int
}

// NewForecastAdapter 読み込んだモデルをラップする。
// どちらも nil 可で、その場合は対応する処理がモデル未ロードを返す
func NewForecastAdapter(regressor Regressor, forecaster SeriesForecaster, maxSteps int) *ForecastAdapter {
	a := &ForecastAdapter{
		regressor:  regressor,
		forecaster: forecaster,
		maxSteps:   maxSteps,
	}
	if regressor != nil {
		a.expected = make(map[string]struct{})
		for _, name := range regressor.FeatureNames() {
			a.expected[name] = struct{}{}
		}
	}
	return a
}

// HasRegressor 回帰モデルがロード済みか
func (a *ForecastAdapter) HasRegressor() bool { return a != nil && a.regressor != nil }

// HasForecaster 時系列モデルがロード済みか
func (a *ForecastAdapter) HasForecaster() bool { return a != nil && a.forecaster != nil }

// RegressorName 回帰モデルの表示名
func (a *ForecastAdapter) RegressorName() string {
	if !a.HasRegressor() {
		return ""
	}
	return a.regressor.Name()
}

// ExpectedFeatures モデルが宣言する特徴量名（順序どおり）
func (a *ForecastAdapter) ExpectedFeatures() []string {
	if !a.HasRegressor() {
		return nil
	}
	return append([]string(nil), a.regressor.FeatureNames()...)
}

// ForecasterInfo 時系列モデルの名前と学習最終日
func (a *ForecastAdapter) ForecasterInfo() (string, time.Time) {
	if !a.HasForecaster() {
		return "", time.Time{}
	}
	return a.forecaster.Name(), a.forecaster.LastDate()
}

// PredictPoint は vec で回帰モデルを実行します。
// vec のキーはモデルの特徴量集合と完全に一致している必要があります。
func (a *ForecastAdapter) PredictPoint(vec models.FeatureVector) (float64, error) {
	if !a.HasRegressor() {
		return 0, apperrors.New(apperrors.CodeModelUnavailable, "regression model is not loaded")
	}

	var missing, extra []string
	for name := range a.expected {
		if _, ok := vec[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range vec {
		if _, ok := a.expected[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return 0, apperrors.ModelInput("feature set mismatch: missing [%s], unexpected [%s]",
			strings.Join(missing, ", "), strings.Join(extra, ", "))
	}

	names := a.regressor.FeatureNames()
	input := make([]float64, len(names))
	for i, name := range names {
		v := vec[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, apperrors.ModelInput("feature %s is not a finite number", name)
		}
		input[i] = v
	}

	pred, err := a.regressor.Predict(input)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "regression model failed")
	}
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return 0, apperrors.New(apperrors.CodeInternal, "regression model returned a non-finite value")
	}
	return pred, nil
}

// ForecastHorizon 学習最終日の翌日から steps 日分を予測する。
// 起点は毎回学習系列から求める
func (a *ForecastAdapter) ForecastHorizon(steps int) (models.HorizonForecast, error) {
	if !a.HasForecaster() {
		return models.HorizonForecast{}, apperrors.New(apperrors.CodeModelUnavailable, "time-series model is not loaded")
	}
	if steps < 1 {
		return models.HorizonForecast{}, apperrors.Parse("steps must be a positive integer, got %d", steps)
	}
	if a.maxSteps > 0 && steps > a.maxSteps {
		return models.HorizonForecast{}, apperrors.Parse("steps must not exceed %d, got %d", a.maxSteps, steps)
	}

	values, err := a.forecaster.Forecast(steps)
	if err != nil {
		return models.HorizonForecast{}, apperrors.Wrap(apperrors.CodeInternal, err, "time-series model failed")
	}
	if len(values) != steps {
		return models.HorizonForecast{}, apperrors.Newf(apperrors.CodeInternal,
			"time-series model returned %d values for %d steps", len(values), steps)
	}

	origin := truncateDay(a.forecaster.LastDate())
	dates := make([]time.Time, steps)
	for i := range dates {
		dates[i] = origin.AddDate(0, 0, i+1)
	}
	return models.HorizonForecast{Dates: dates, Values: values}, nil
}
