package models

import "time"

// SalesRecord クレンジング済みの販売データ1行
type SalesRecord struct {
	Date        time.Time `json:"date"`
	Sales       float64   `json:"sales"`
	Region      string    `json:"region,omitempty"`
	Category    string    `json:"category,omitempty"`
	SubCategory string    `json:"sub_category,omitempty"`
}

// SalesFrame はCSVローダーが返す正規化済みフレームです。
// Records は日付の昇順に並んでいます。
type SalesFrame struct {
	Records []SalesRecord
	// DateColumn 元ファイルの日付列名（正規化後）
	DateColumn string
	// HasSegments region, category, sub_category の3列が揃っているか
	HasSegments bool
	// Columns アップロードされたヘッダー（正規化後）
	Columns []string
}

// Len レコード件数を返す
func (f *SalesFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Records)
}

// Sales 日付順の売上列を返す
func (f *SalesFrame) Sales() []float64 {
	out := make([]float64, len(f.Records))
	for i, r := range f.Records {
		out[i] = r.Sales
	}
	return out
}

// LoadReport ローダーが採用・除外した行数の集計
type LoadReport struct {
	TotalRows    int `json:"total_rows"`
	KeptRows     int `json:"kept_rows"`
	BadDateRows  int `json:"bad_date_rows"`
	BadSalesRows int `json:"bad_sales_rows"`
}

// FeatureRow は1レコード分のモデル特徴量です。
// ラグ・移動統計は履歴が足りないうちは未定義（nil）になります。
type FeatureRow struct {
	Date         time.Time
	Sales        float64
	Lags         map[int]*float64
	RollingMean3 *float64
	RollingStd3  *float64
	Year         int
	Month        int
	Quarter      int
}

// FeatureVector 名前付きの完全なモデル入力
type FeatureVector map[string]float64

// TrendPoint 1か月分の集計売上
type TrendPoint struct {
	Period    string  `json:"period"`
	SalesSum  float64 `json:"sales_sum"`
	GrowthPct float64 `json:"growth_pct"`
}

// TrendSummary 月次トレンドと直近の前月比成長率
type TrendSummary struct {
	Points        []TrendPoint
	OverallGrowth float64
}

// TrendSeries レポートが受け取る列指向のトレンドデータ
type TrendSeries struct {
	Dates  []string  `json:"dates"`
	Sales  []float64 `json:"sales"`
	Growth []float64 `json:"growth,omitempty"`
}

// VolatilityLevel 売上のばらつきの段階
type VolatilityLevel string

const (
	VolatilityLow    VolatilityLevel = "Low"
	VolatilityMedium VolatilityLevel = "Medium"
	VolatilityHigh   VolatilityLevel = "High"
)

// KpiSnapshot リクエストごとに売上系列から算出されるKPI
type KpiSnapshot struct {
	TotalSales      float64         `json:"total_sales"`
	AvgSales        float64         `json:"avg_sales"`
	LatestSales     float64         `json:"latest_sales"`
	GrowthPct       float64         `json:"growth_pct"`
	VolatilityLevel VolatilityLevel `json:"volatility_level"`
}

// InsightCategory インサイトを生成したルールの種別
type InsightCategory string

const (
	InsightTrend      InsightCategory = "trend"
	InsightVolatility InsightCategory = "volatility"
	InsightInventory  InsightCategory = "inventory"
	InsightRevenue    InsightCategory = "revenue"
)

// Insight 人が読むための分析結果1件
type Insight struct {
	Category InsightCategory `json:"category"`
	Text     string          `json:"text"`
}

// InsightTexts 表示順に本文だけを取り出す
func InsightTexts(insights []Insight) []string {
	out := make([]string, len(insights))
	for i, in := range insights {
		out[i] = in.Text
	}
	return out
}

// RuleTable はKPIとインサイトで共有する「閾値 → 段階 → 推奨」の設定です。
type RuleTable struct {
	VolatilityHigh     float64 `yaml:"volatility_high" json:"volatility_high"`
	VolatilityMedium   float64 `yaml:"volatility_medium" json:"volatility_medium"`
	IncreaseMultiplier float64 `yaml:"increase_multiplier" json:"increase_multiplier"`
	ReduceMultiplier   float64 `yaml:"reduce_multiplier" json:"reduce_multiplier"`
	TrendTolerance     float64 `yaml:"trend_tolerance" json:"trend_tolerance"`
	TrendWindow        int     `yaml:"trend_window" json:"trend_window"`
	RollingWindow      int     `yaml:"rolling_window" json:"rolling_window"`
}

// DefaultRuleTable 標準の閾値を返す
func DefaultRuleTable() RuleTable {
	return RuleTable{
		VolatilityHigh:     0.35,
		VolatilityMedium:   0.20,
		IncreaseMultiplier: 1.10,
		ReduceMultiplier:   0.90,
		TrendTolerance:     0.02,
		TrendWindow:        3,
		RollingWindow:      3,
	}
}

// ManualForecastRequest 手入力予測のリクエストボディ
// 未指定と明示的な0を区別するためポインタで受ける
type ManualForecastRequest struct {
	Lag1    *float64 `json:"lag_1"`
	Lag2    *float64 `json:"lag_2"`
	Lag3    *float64 `json:"lag_3"`
	Year    *int     `json:"year"`
	Month   *int     `json:"month"`
	Quarter *int     `json:"quarter"`
}

// ManualForecastResponse 手入力予測のレスポンス
type ManualForecastResponse struct {
	PredictedSales float64 `json:"predicted_sales"`
	RollingMean    float64 `json:"rolling_mean"`
	RollingStd     float64 `json:"rolling_std"`
	ModelUsed      string  `json:"model_used"`
	Note           string  `json:"note"`
}

// CSVForecastResponse CSV予測のレスポンス。レポートダウンロードの入力としても使う
type CSVForecastResponse struct {
	PredictedSales  float64     `json:"predicted_sales"`
	ExpectedRevenue float64     `json:"expected_revenue"`
	Trend           TrendSeries `json:"trend"`
	Kpis            KpiSnapshot `json:"kpis"`
	Insights        []string    `json:"insights"`
	ModelUsed       string      `json:"model_used"`
	Disclaimer      string      `json:"disclaimer"`
}

// SegmentFilter セグメントの絞り込み条件。空文字は条件なし
type SegmentFilter struct {
	Region      string `form:"region" json:"region,omitempty"`
	Category    string `form:"category" json:"category,omitempty"`
	SubCategory string `form:"sub_category" json:"sub_category,omitempty"`
}

// IsEmpty どの条件も指定されていなければ true
func (s SegmentFilter) IsEmpty() bool {
	return s.Region == "" && s.Category == "" && s.SubCategory == ""
}

// SegmentedForecastResponse セグメント予測のレスポンス
type SegmentedForecastResponse struct {
	ForecastType     string      `json:"forecast_type"`
	Trend            TrendSeries `json:"trend"`
	ForecastQuantity []float64   `json:"forecast_quantity"`
	Kpis             KpiSnapshot `json:"kpis"`
}

// HorizonForecast 時系列モデルの生の予測結果
type HorizonForecast struct {
	Dates  []time.Time
	Values []float64
}

// TimeSeriesForecastResponse 時系列予測のレスポンス
type TimeSeriesForecastResponse struct {
	Model           string    `json:"model"`
	ForecastHorizon string    `json:"forecast_horizon"`
	FutureDates     []string  `json:"future_dates"`
	Forecast        []float64 `json:"forecast"`
	StepsBreakdown  []string  `json:"steps_breakdown"`
	Insight         string    `json:"insight"`
}
