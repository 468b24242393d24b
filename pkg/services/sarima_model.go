package services

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sartorproj/goarima/sarima"
	"github.com/sartorproj/goarima/timeseries"

	"sparksales-api/pkg/logger"
)

// SarimaOrder 季節モデルの次数 (p,d,q)(P,D,Q,s)
type SarimaOrder struct {
	P, D, Q    int
	SP, SD, SQ int
	Period     int
}

func (o SarimaOrder) String() string {
	return fmt.Sprintf("SARIMA(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.Period)
}

type seriesPredictor interface {
	Predict(steps int) ([]float64, error)
}

// SarimaForecaster は起動時に一度だけ学習する季節ARIMAモデルです。
// 学習データは日次の売上系列です。
type SarimaForecaster struct {
	mu       sync.Mutex
	order    SarimaOrder
	model    seriesPredictor
	lastDate time.Time
	points   int
}

// SeriesArtifact 学習に使う日次売上（欠損日は0埋め）
type SeriesArtifact struct {
	Dates  []time.Time
	Values []float64
}

// LoadSeriesArtifact 売上CSVを読み込み日次合計にまとめる。欠けている日は0で埋める
func LoadSeriesArtifact(path string, log *logger.Logger) (SeriesArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeriesArtifact{}, fmt.Errorf("open series artifact: %w", err)
	}
	defer f.Close()

	frame, _, err := NewCsvLoader(log).Load(f, path)
	if err != nil {
		return SeriesArtifact{}, err
	}
	if frame.Len() == 0 {
		return SeriesArtifact{}, fmt.Errorf("series artifact %s has no usable rows", path)
	}
	dates, values := NewTrendComputer().DailyTotals(frame.Records)
	dates, values = FillDaily(dates, values)
	return SeriesArtifact{Dates: dates, Values: values}, nil
}

// FitSarima 指定次数でモデルを学習する
func FitSarima(art SeriesArtifact, order SarimaOrder) (*SarimaForecaster, error) {
	if len(art.Values) == 0 || len(art.Dates) != len(art.Values) {
		return nil, fmt.Errorf("series artifact is empty or misaligned")
	}
	minPoints := order.Period*(order.SD+1) + order.D + order.P + 2
	if len(art.Values) < minPoints {
		return nil, fmt.Errorf("%s needs at least %d observations, have %d", order, minPoints, len(art.Values))
	}

	series := &timeseries.Series{Values: append([]float64(nil), art.Values...)}
	model := sarima.New(order.P, order.D, order.Q, order.SP, order.SD, order.SQ, order.Period)
	if err := model.Fit(series); err != nil {
		return nil, fmt.Errorf("fit %s: %w", order, err)
	}
	return &SarimaForecaster{
		order:    order,
		model:    model,
		lastDate: art.Dates[len(art.Dates)-1],
		points:   len(art.Values),
	}, nil
}

func (s *SarimaForecaster) Name() string        { return s.order.String() }
func (s *SarimaForecaster) LastDate() time.Time { return s.lastDate }

// Observations 学習に使った点の数
func (s *SarimaForecaster) Observations() int { return s.points }

// Forecast steps 件の予測値を返す。学習済みの状態は進めないので、同じ steps なら結果は毎回同じ
func (s *SarimaForecaster) Forecast(steps int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.model.Predict(steps)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), out...), nil
}
