package services

import (
	"fmt"
	"math"
	"sort"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"
)

// FeaturePolicy 窓が埋まっていない区間の移動統計の扱い
type FeaturePolicy int

const (
	// StrictFeatures 窓が埋まるまで未定義（min_periods = 窓幅）
	StrictFeatures FeaturePolicy = iota
	// LaxFeatures 部分的な窓も使う（min_periods = 1）。1件だけの窓の標準偏差は0
	LaxFeatures
)

func (p FeaturePolicy) String() string {
	if p == LaxFeatures {
		return "laxFeatures"
	}
	return "strictFeatures"
}

// DefaultLags 回帰モデルの学習時に使ったラグ
var DefaultLags = []int{1, 2, 3}

// RollingWindow 移動統計の窓幅
const RollingWindow = 3

// LagColumns 売上系列のラグ列と移動統計列。nil は未定義
type LagColumns struct {
	Lags        map[int][]*float64
	RollingMean []*float64
	RollingStd  []*float64
}

// FeatureEngineer はカレンダー特徴量とラグ・移動統計特徴量を生成します。
type FeatureEngineer struct {
	lags   []int
	window int
}

// NewFeatureEngineer 指定ラグ（省略時は DefaultLags）で作成
func NewFeatureEngineer(lags ...int) *FeatureEngineer {
	if len(lags) == 0 {
		lags = DefaultLags
	}
	cp := append([]int(nil), lags...)
	sort.Ints(cp)
	return &FeatureEngineer{lags: cp, window: RollingWindow}
}

// Lags 設定されたラグを返す
func (fe *FeatureEngineer) Lags() []int {
	return append([]int(nil), fe.lags...)
}

// FeatureNames 生成する特徴量名を返す
func (fe *FeatureEngineer) FeatureNames() []string {
	names := make([]string, 0, len(fe.lags)+5)
	for _, lag := range fe.lags {
		names = append(names, lagName(lag))
	}
	return append(names,
		fmt.Sprintf("rolling_mean_%d", fe.window),
		fmt.Sprintf("rolling_std_%d", fe.window),
		"year", "month", "quarter")
}

// CreateTimeFeatures はレコードごとに year, month, quarter を求めます。
// 日付はパース済みであること。ゼロ値の日付はスキーマエラー。
func (fe *FeatureEngineer) CreateTimeFeatures(records []models.SalesRecord) ([]models.FeatureRow, error) {
	rows := make([]models.FeatureRow, len(records))
	for i, r := range records {
		if r.Date.IsZero() {
			return nil, apperrors.Schema("record %d has no parsed date", i)
		}
		rows[i] = models.FeatureRow{
			Date:    r.Date,
			Sales:   r.Sales,
			Year:    r.Date.Year(),
			Month:   int(r.Date.Month()),
			Quarter: quarterOf(int(r.Date.Month())),
		}
	}
	return rows, nil
}

// CreateLagFeatures 各ラグだけ値をずらし、policy に従って移動平均・移動標準偏差を計算する。
// values は日付順であること
func (fe *FeatureEngineer) CreateLagFeatures(values []float64, policy FeaturePolicy) LagColumns {
	cols := LagColumns{Lags: make(map[int][]*float64, len(fe.lags))}
	for _, lag := range fe.lags {
		col := make([]*float64, len(values))
		for i := lag; i < len(values); i++ {
			v := values[i-lag]
			col[i] = &v
		}
		cols.Lags[lag] = col
	}
	cols.RollingMean, cols.RollingStd = rollingStats(values, fe.window, policy)
	return cols
}

// BuildFeatureRows 日付順のレコードに時間特徴量とラグ特徴量をまとめて付与
func (fe *FeatureEngineer) BuildFeatureRows(records []models.SalesRecord, policy FeaturePolicy) ([]models.FeatureRow, error) {
	rows, err := fe.CreateTimeFeatures(records)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Sales
	}
	cols := fe.CreateLagFeatures(values, policy)
	for i := range rows {
		rows[i].Lags = make(map[int]*float64, len(fe.lags))
		for _, lag := range fe.lags {
			rows[i].Lags[lag] = cols.Lags[lag][i]
		}
		rows[i].RollingMean3 = cols.RollingMean[i]
		rows[i].RollingStd3 = cols.RollingStd[i]
	}
	return rows, nil
}

// CompleteRows ラグ・移動統計がすべて定義済みの行だけを残す
func (fe *FeatureEngineer) CompleteRows(rows []models.FeatureRow) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(rows))
	for _, row := range rows {
		if fe.isComplete(row) {
			out = append(out, row)
		}
	}
	return out
}

func (fe *FeatureEngineer) isComplete(row models.FeatureRow) bool {
	if row.RollingMean3 == nil || row.RollingStd3 == nil {
		return false
	}
	for _, lag := range fe.lags {
		if row.Lags[lag] == nil {
			return false
		}
	}
	return true
}

// Vector は完全な行を名前付きのモデル入力に変換します。
// 未定義の値をデフォルト値で埋めることはしません。
func (fe *FeatureEngineer) Vector(row models.FeatureRow) (models.FeatureVector, error) {
	vec := make(models.FeatureVector, len(fe.lags)+5)
	for _, lag := range fe.lags {
		v := row.Lags[lag]
		if v == nil {
			return nil, apperrors.ModelInput("%s is undefined for %s", lagName(lag), row.Date.Format("2006-01-02"))
		}
		vec[lagName(lag)] = *v
	}
	if row.RollingMean3 == nil || row.RollingStd3 == nil {
		return nil, apperrors.ModelInput("rolling statistics are undefined for %s", row.Date.Format("2006-01-02"))
	}
	vec[fmt.Sprintf("rolling_mean_%d", fe.window)] = *row.RollingMean3
	vec[fmt.Sprintf("rolling_std_%d", fe.window)] = *row.RollingStd3
	vec["year"] = float64(row.Year)
	vec["month"] = float64(row.Month)
	vec["quarter"] = float64(row.Quarter)
	return vec, nil
}

// RollingMean 移動平均
func RollingMean(values []float64, window int, policy FeaturePolicy) []*float64 {
	m, _ := rollingStats(values, window, policy)
	return m
}

// RollingStd 移動標準偏差（不偏）
func RollingStd(values []float64, window int, policy FeaturePolicy) []*float64 {
	_, s := rollingStats(values, window, policy)
	return s
}

func rollingStats(values []float64, window int, policy FeaturePolicy) ([]*float64, []*float64) {
	means := make([]*float64, len(values))
	stds := make([]*float64, len(values))
	if window < 1 {
		return means, stds
	}
	for i := range values {
		start := i - window + 1
		if start < 0 {
			if policy == StrictFeatures {
				continue
			}
			start = 0
		}
		win := values[start : i+1]
		m := mean(win)
		s := sampleStdDev(win)
		if math.IsNaN(s) {
			s = 0
		}
		means[i] = &m
		stds[i] = &s
	}
	return means, stds
}

func lagName(lag int) string {
	return fmt.Sprintf("lag_%d", lag)
}

func quarterOf(month int) int {
	return (month-1)/3 + 1
}

// Deref nil を含む列を値に展開する。未定義は NaN
func Deref(col []*float64) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}
