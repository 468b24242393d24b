package services

import (
	"testing"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKpiComputerConstantSeries(t *testing.T) {
	kpis, err := NewKpiComputer(models.DefaultRuleTable()).Compute([]float64{100, 100, 100, 100})
	require.NoError(t, err)

	assert.Equal(t, models.KpiSnapshot{
		TotalSales:      400,
		AvgSales:        100,
		LatestSales:     100,
		GrowthPct:       0,
		VolatilityLevel: models.VolatilityLow,
	}, kpis)
}

func TestKpiComputerGrowthAndTiers(t *testing.T) {
	kc := NewKpiComputer(models.DefaultRuleTable())
	tests := []struct {
		name   string
		sales  []float64
		growth float64
		tier   models.VolatilityLevel
	}{
		{"single value", []float64{50}, 0, models.VolatilityLow},
		{"previous zero", []float64{0, 10}, 0, models.VolatilityHigh},
		{"doubling", []float64{100, 200}, 100, models.VolatilityHigh},
		{"moderate", []float64{100, 150}, 50, models.VolatilityMedium},
		{"decline", []float64{120, 110, 100}, -9.09, models.VolatilityLow},
		{"all zero", []float64{0, 0, 0}, 0, models.VolatilityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kpis, err := kc.Compute(tt.sales)
			require.NoError(t, err)
			assert.Equal(t, tt.growth, kpis.GrowthPct)
			assert.Equal(t, tt.tier, kpis.VolatilityLevel)
			assert.Equal(t, round2(tt.sales[len(tt.sales)-1]), kpis.LatestSales)
		})
	}
}

func TestKpiComputerEmpty(t *testing.T) {
	_, err := NewKpiComputer(models.DefaultRuleTable()).Compute(nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeEmptyResult))
}

func TestVolatilityTierBoundaries(t *testing.T) {
	rules := models.DefaultRuleTable()
	assert.Equal(t, models.VolatilityLow, VolatilityTier(0, rules))
	assert.Equal(t, models.VolatilityLow, VolatilityTier(0.20, rules))
	assert.Equal(t, models.VolatilityMedium, VolatilityTier(0.2001, rules))
	assert.Equal(t, models.VolatilityMedium, VolatilityTier(0.35, rules))
	assert.Equal(t, models.VolatilityHigh, VolatilityTier(0.3501, rules))

	custom := rules
	custom.VolatilityHigh, custom.VolatilityMedium = 0.5, 0.25
	assert.Equal(t, models.VolatilityMedium, VolatilityTier(0.4, custom))
	assert.Equal(t, models.VolatilityLow, VolatilityTier(0.25, custom))
}
