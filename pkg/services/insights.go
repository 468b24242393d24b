package services

import (
	"fmt"

	"sparksales-api/pkg/models"
)

// InventoryAction 在庫ルールの判定結果
type InventoryAction string

const (
	InventoryStronglyIncrease   InventoryAction = "strongly increase"
	InventoryCautiouslyIncrease InventoryAction = "cautiously increase"
	InventoryMaintain           InventoryAction = "maintain"
	InventoryReduce             InventoryAction = "reduce"
)

// TrendDirection トレンドルールの判定結果
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDeclining  TrendDirection = "declining"
	TrendStable     TrendDirection = "stable"
)

var inventoryText = map[InventoryAction]string{
	InventoryStronglyIncrease:   "Inventory recommendation: strongly increase inventory levels to meet the expected rise in demand.",
	InventoryCautiouslyIncrease: "Inventory recommendation: cautiously increase inventory; demand is rising but sales are highly volatile.",
	InventoryMaintain:           "Inventory recommendation: maintain current inventory levels.",
	InventoryReduce:             "Inventory recommendation: reduce inventory to prevent overstocking.",
}

var volatilityText = map[models.VolatilityLevel]string{
	models.VolatilityLow:    "Sales volatility is Low: recent demand is steady (rolling deviation %.1f%% of average sales).",
	models.VolatilityMedium: "Sales volatility is Medium: demand shows moderate fluctuations (rolling deviation %.1f%% of average sales).",
	models.VolatilityHigh:   "Sales volatility is High: demand swings sharply between periods (rolling deviation %.1f%% of average sales).",
}

// InsightGenerator は RuleTable に基づいてインサイトを生成します。
type InsightGenerator struct {
	rules models.RuleTable
}

// NewInsightGenerator 新しい InsightGenerator を作成
func NewInsightGenerator(rules models.RuleTable) *InsightGenerator {
	if rules.TrendWindow < 1 {
		rules.TrendWindow = 3
	}
	if rules.RollingWindow < 1 {
		rules.RollingWindow = RollingWindow
	}
	return &InsightGenerator{rules: rules}
}

// Rules 使用中のルールを返す
func (g *InsightGenerator) Rules() models.RuleTable {
	return g.rules
}

// Generate はトレンド・ボラティリティ・在庫・収益の各ルールを個別に評価し、
// この順でインサイトを返します。
func (g *InsightGenerator) Generate(sales []float64, predicted float64, kpis models.KpiSnapshot) []models.Insight {
	avg := mean(sales)

	direction, recent, previous := g.TrendDirection(sales)
	insights := []models.Insight{{
		Category: models.InsightTrend,
		Text:     trendText(direction, recent, previous, g.rules.TrendWindow),
	}}

	level, ratio := g.RollingVolatility(sales)
	insights = append(insights, models.Insight{
		Category: models.InsightVolatility,
		Text:     fmt.Sprintf(volatilityText[level], ratio*100),
	})

	insights = append(insights, models.Insight{
		Category: models.InsightInventory,
		Text:     inventoryText[g.InventoryAction(predicted, avg, kpis.VolatilityLevel)],
	})

	if predicted > avg {
		insights = append(insights, models.Insight{
			Category: models.InsightRevenue,
			Text:     "Positive revenue outlook based on projected sales volume.",
		})
	} else {
		insights = append(insights, models.Insight{
			Category: models.InsightRevenue,
			Text:     "Revenue growth may slow if current demand trends continue.",
		})
	}
	return insights
}

// TrendDirection 直近の窓の平均を、その直前（最大1窓分）の平均と比較する
func (g *InsightGenerator) TrendDirection(sales []float64) (TrendDirection, float64, float64) {
	w := g.rules.TrendWindow
	if len(sales) == 0 {
		return TrendStable, 0, 0
	}
	split := len(sales) - w
	if split < 0 {
		split = 0
	}
	recent := mean(sales[split:])
	prevStart := split - w
	if prevStart < 0 {
		prevStart = 0
	}
	if split == prevStart {
		return TrendStable, recent, recent
	}
	previous := mean(sales[prevStart:split])

	if previous == 0 {
		if recent > 0 {
			return TrendIncreasing, recent, previous
		}
		return TrendStable, recent, previous
	}
	change := (recent - previous) / previous
	switch {
	case change > g.rules.TrendTolerance:
		return TrendIncreasing, recent, previous
	case change < -g.rules.TrendTolerance:
		return TrendDeclining, recent, previous
	default:
		return TrendStable, recent, previous
	}
}

// RollingVolatility 移動標準偏差の平均を売上平均で割った比率で段階を決める。
// KPIの系列全体のボラティリティとは別物
func (g *InsightGenerator) RollingVolatility(sales []float64) (models.VolatilityLevel, float64) {
	avg := mean(sales)
	if avg == 0 {
		return models.VolatilityLow, 0
	}
	var defined []float64
	for _, s := range RollingStd(sales, g.rules.RollingWindow, StrictFeatures) {
		if s != nil {
			defined = append(defined, *s)
		}
	}
	ratio := coefficientOfVariation(mean(defined), avg)
	return VolatilityTier(ratio, g.rules), ratio
}

// InventoryAction 予測値と平均の比較に、KPIのボラティリティ段階を組み合わせて判定
func (g *InsightGenerator) InventoryAction(predicted, avg float64, tier models.VolatilityLevel) InventoryAction {
	switch {
	case predicted > avg*g.rules.IncreaseMultiplier:
		if tier == models.VolatilityHigh {
			return InventoryCautiouslyIncrease
		}
		return InventoryStronglyIncrease
	case predicted < avg*g.rules.ReduceMultiplier:
		return InventoryReduce
	default:
		return InventoryMaintain
	}
}

func trendText(direction TrendDirection, recent, previous float64, window int) string {
	switch direction {
	case TrendIncreasing:
		return fmt.Sprintf("Sales trend is increasing: the last %d periods average %.2f versus %.2f before.", window, recent, previous)
	case TrendDeclining:
		return fmt.Sprintf("Sales trend is declining: the last %d periods average %.2f versus %.2f before.", window, recent, previous)
	default:
		return fmt.Sprintf("Sales trend is stable: the last %d periods average %.2f.", window, recent)
	}
}
