package services

import (
	"sort"
	"time"

	"sparksales-api/pkg/models"
)

const monthLayout = "2006-01"

// TrendComputer 売上を暦の期間ごとに集計する
type TrendComputer struct{}

// NewTrendComputer 新しい TrendComputer を作成
func NewTrendComputer() *TrendComputer {
	return &TrendComputer{}
}

// MonthlyTrend は最初の月から最後の月まで月ごとに売上を合計します。
// 売上の無い月も合計0として含めます。
func (tc *TrendComputer) MonthlyTrend(records []models.SalesRecord) models.TrendSummary {
	if len(records) == 0 {
		return models.TrendSummary{Points: []models.TrendPoint{}}
	}

	sums := make(map[string]float64)
	first, last := records[0].Date, records[0].Date
	for _, r := range records {
		sums[r.Date.Format(monthLayout)] += r.Sales
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}

	var raw []float64
	var periods []string
	cursor := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		key := cursor.Format(monthLayout)
		periods = append(periods, key)
		raw = append(raw, sums[key])
		cursor = cursor.AddDate(0, 1, 0)
	}

	points := make([]models.TrendPoint, len(raw))
	for i, v := range raw {
		growth := 0.0
		if i > 0 {
			growth = pctChange(raw[i-1], v)
		}
		points[i] = models.TrendPoint{
			Period:    periods[i],
			SalesSum:  round2(v),
			GrowthPct: round2(growth),
		}
	}

	overall := 0.0
	if n := len(raw); n >= 2 {
		overall = pctChange(raw[n-2], raw[n-1])
	}
	return models.TrendSummary{Points: points, OverallGrowth: round2(overall)}
}

// Series 月次集計を列指向のデータに変換
func (tc *TrendComputer) Series(summary models.TrendSummary) models.TrendSeries {
	out := models.TrendSeries{
		Dates:  make([]string, len(summary.Points)),
		Sales:  make([]float64, len(summary.Points)),
		Growth: make([]float64, len(summary.Points)),
	}
	for i, p := range summary.Points {
		out.Dates[i] = p.Period
		out.Sales[i] = p.SalesSum
		out.Growth[i] = p.GrowthPct
	}
	return out
}

// DailyTotals 日付ごとに売上を合計（昇順）
func (tc *TrendComputer) DailyTotals(records []models.SalesRecord) ([]time.Time, []float64) {
	sums := make(map[time.Time]float64)
	for _, r := range records {
		day := truncateDay(r.Date)
		sums[day] += r.Sales
	}
	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = sums[d]
	}
	return dates, values
}

// DailySeries 日次合計のデータ。売上は小数第2位に丸める
func (tc *TrendComputer) DailySeries(records []models.SalesRecord) models.TrendSeries {
	dates, values := tc.DailyTotals(records)
	out := models.TrendSeries{
		Dates: make([]string, len(dates)),
		Sales: round2All(values),
	}
	for i, d := range dates {
		out.Dates[i] = d.Format("2006-01-02")
	}
	return out
}

// FillDaily 日次合計を連続した日付に展開し、欠けている日は0で埋める
func FillDaily(dates []time.Time, values []float64) ([]time.Time, []float64) {
	if len(dates) == 0 {
		return nil, nil
	}
	byDay := make(map[time.Time]float64, len(dates))
	for i, d := range dates {
		byDay[truncateDay(d)] += values[i]
	}
	start, end := truncateDay(dates[0]), truncateDay(dates[len(dates)-1])
	var outDates []time.Time
	var outValues []float64
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		outDates = append(outDates, d)
		outValues = append(outValues, byDay[d])
	}
	return outDates, outValues
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
