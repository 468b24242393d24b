package services

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// round2 は小数第2位に丸めます（四捨五入）。NaN/Inf は0。
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// round2All 全要素を丸める
func round2All(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = round2(v)
	}
	return out
}

// mean 算術平均。空なら0
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// sampleStdDev 不偏標準偏差（N-1）。2件未満なら0
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// sum 合計
func sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// pctChange prev から cur への変化率（%）。prev が0なら0
func pctChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// coefficientOfVariation 変動係数 stddev/mean。mean が0なら0
func coefficientOfVariation(stddev, m float64) float64 {
	if m == 0 {
		return 0
	}
	return stddev / m
}

// linearSlope x = 0..n-1 に y = a + b*x を当てはめて傾き b を返す
func linearSlope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, values, nil, false)
	return beta
}

// formatRounded 小数第 places 位に丸めた文字列
func formatRounded(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).Round(places).String()
}
