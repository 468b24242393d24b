package services

import (
	"testing"

	"sparksales-api/pkg/apperrors"
	"sparksales-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLagFeaturesSingleLag(t *testing.T) {
	cols := NewFeatureEngineer(1).CreateLagFeatures([]float64{10, 20, 30}, StrictFeatures)

	lag1 := cols.Lags[1]
	require.Len(t, lag1, 3)
	assert.Nil(t, lag1[0])
	assert.Equal(t, 10.0, *lag1[1])
	assert.Equal(t, 20.0, *lag1[2])
}

func TestCreateLagFeaturesDefaultLags(t *testing.T) {
	fe := NewFeatureEngineer()
	assert.Equal(t, []int{1, 2, 3}, fe.Lags())

	cols := fe.CreateLagFeatures([]float64{1, 2, 3, 4, 5}, StrictFeatures)
	assert.Equal(t, []*float64{nil, nil, nil}, cols.Lags[3][:3])
	assert.Equal(t, 1.0, *cols.Lags[3][3])
	assert.Equal(t, 2.0, *cols.Lags[3][4])
	assert.Equal(t, 3.0, *cols.Lags[2][4])
}

func TestRollingStatsPolicies(t *testing.T) {
	values := []float64{10, 20, 30, 60}

	strictMean := RollingMean(values, 3, StrictFeatures)
	strictStd := RollingStd(values, 3, StrictFeatures)
	assert.Nil(t, strictMean[0])
	assert.Nil(t, strictMean[1])
	assert.Nil(t, strictStd[1])
	assert.InDelta(t, 20.0, *strictMean[2], 1e-9)
	assert.InDelta(t, 10.0, *strictStd[2], 1e-9)
	assert.InDelta(t, 36.6666667, *strictMean[3], 1e-6)

	laxMean := RollingMean(values, 3, LaxFeatures)
	laxStd := RollingStd(values, 3, LaxFeatures)
	for i := range values {
		require.NotNil(t, laxMean[i])
		require.NotNil(t, laxStd[i])
	}
	assert.Equal(t, 10.0, *laxMean[0])
	assert.Equal(t, 0.0, *laxStd[0])
	assert.InDelta(t, 15.0, *laxMean[1], 1e-9)
	assert.InDelta(t, 7.0710678, *laxStd[1], 1e-6)
	assert.Equal(t, *strictMean[3], *laxMean[3])
}

func TestFeaturePolicyString(t *testing.T) {
	assert.Equal(t, "strictFeatures", StrictFeatures.String())
	assert.Equal(t, "laxFeatures", LaxFeatures.String())
}

func TestCreateTimeFeatures(t *testing.T) {
	fe := NewFeatureEngineer()
	rows, err := fe.CreateTimeFeatures([]models.SalesRecord{
		{Date: day(2024, 1, 15), Sales: 1},
		{Date: day(2024, 6, 30), Sales: 2},
		{Date: day(2025, 12, 1), Sales: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2024, 2024, 2025}, []int{rows[0].Year, rows[1].Year, rows[2].Year})
	assert.Equal(t, []int{1, 6, 12}, []int{rows[0].Month, rows[1].Month, rows[2].Month})
	assert.Equal(t, []int{1, 2, 4}, []int{rows[0].Quarter, rows[1].Quarter, rows[2].Quarter})
}

func TestCreateTimeFeaturesRequiresParsedDate(t *testing.T) {
	_, err := NewFeatureEngineer().CreateTimeFeatures([]models.SalesRecord{{Sales: 5}})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSchema))
}

func TestBuildFeatureRowsExcludesIncompleteLookback(t *testing.T) {
	fe := NewFeatureEngineer()
	rows, err := fe.BuildFeatureRows(recordsOf(day(2024, 3, 30), 100, 110, 120, 130, 140), StrictFeatures)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	complete := fe.CompleteRows(rows)
	require.Len(t, complete, 2)

	vec, err := fe.Vector(complete[1])
	require.NoError(t, err)
	assert.Equal(t, models.FeatureVector{
		"lag_1":          130,
		"lag_2":          120,
		"lag_3":          110,
		"rolling_mean_3": 130,
		"rolling_std_3":  10,
		"year":           2024,
		"month":          4,
		"quarter":        2,
	}, vec)
	assert.ElementsMatch(t, fe.FeatureNames(), keysOf(vec))
}

func TestVectorRejectsIncompleteRow(t *testing.T) {
	fe := NewFeatureEngineer()
	rows, err := fe.BuildFeatureRows(recordsOf(day(2024, 1, 1), 1, 2, 3), StrictFeatures)
	require.NoError(t, err)

	for _, row := range rows {
		_, err := fe.Vector(row)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeModelInput))
	}
}

func keysOf(vec models.FeatureVector) []string {
	out := make([]string, 0, len(vec))
	for k := range vec {
		out = append(out, k)
	}
	return out
}
