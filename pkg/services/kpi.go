package services

import (
	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"
)

// KpiComputer クレンジング済み・日付順の系列からKPIを算出する
type KpiComputer struct {
	rules models.RuleTable
}

// NewKpiComputer rules の閾値を使う KpiComputer を作成
func NewKpiComputer(rules models.RuleTable) *KpiComputer {
	return &KpiComputer{rules: rules}
}

// Compute は合計・平均・最新値・直近の成長率と、
// 系列全体の変動係数によるボラティリティ段階を返します。
func (kc *KpiComputer) Compute(sales []float64) (models.KpiSnapshot, error) {
	if len(sales) == 0 {
		return models.KpiSnapshot{}, apperrors.EmptyResult("no sales values to summarize")
	}

	avg := mean(sales)
	latest := sales[len(sales)-1]
	growth := 0.0
	if len(sales) > 1 {
		growth = pctChange(sales[len(sales)-2], latest)
	}
	cv := coefficientOfVariation(sampleStdDev(sales), avg)

	return models.KpiSnapshot{
		TotalSales:      round2(sum(sales)),
		AvgSales:        round2(avg),
		LatestSales:     round2(latest),
		GrowthPct:       round2(growth),
		VolatilityLevel: VolatilityTier(cv, kc.rules),
	}, nil
}

// VolatilityTier ばらつきの比率を Low/Medium/High に振り分ける
func VolatilityTier(ratio float64, rules models.RuleTable) models.VolatilityLevel {
	switch {
	case ratio > rules.VolatilityHigh:
		return models.VolatilityHigh
	case ratio > rules.VolatilityMedium:
		return models.VolatilityMedium
	default:
		return models.VolatilityLow
	}
}
