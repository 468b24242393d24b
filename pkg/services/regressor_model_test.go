package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forestArtifact = `{
  "model_type": "random_forest",
  "feature_names": ["lag_1", "month"],
  "trees": [
    {"nodes": [
      {"feature": 0, "threshold": 100, "left": 1, "right": 2},
      {"feature": -1, "value": 50},
      {"feature": -1, "value": 150}
    ]},
    {"nodes": [
      {"feature": 1, "threshold": 6, "left": 1, "right": 2},
      {"feature": -1, "value": 10},
      {"feature": -1, "value": 30}
    ]}
  ]
}`

func TestParseRegressorForest(t *testing.T) {
	reg, err := ParseRegressor([]byte(forestArtifact))
	require.NoError(t, err)
	assert.Equal(t, "Random Forest Regressor", reg.Name())
	assert.Equal(t, []string{"lag_1", "month"}, reg.FeatureNames())

	tests := []struct {
		x    []float64
		want float64
	}{
		{[]float64{100, 6}, 30},  // (50 + 10) / 2
		{[]float64{101, 6}, 80},  // (150 + 10) / 2
		{[]float64{20, 12}, 40},  // (50 + 30) / 2
		{[]float64{200, 12}, 90}, // (150 + 30) / 2
	}
	for _, tt := range tests {
		got, err := reg.Predict(tt.x)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err = reg.Predict([]float64{1})
	assert.Error(t, err)
}

func TestParseRegressorLinear(t *testing.T) {
	reg, err := ParseRegressor([]byte(`{
		"model_type": "linear",
		"model_name": "Ridge",
		"feature_names": ["lag_1", "lag_2"],
		"intercept": 5,
		"coefficients": [0.5, 0.25]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Ridge", reg.Name())

	got, err := reg.Predict([]float64{100, 40})
	require.NoError(t, err)
	assert.Equal(t, 65.0, got)
}

func TestParseRegressorInvalid(t *testing.T) {
	tests := map[string]string{
		"not json":             `{`,
		"no features":          `{"model_type": "linear", "feature_names": []}`,
		"duplicate feature":    `{"model_type": "linear", "feature_names": ["a", "a"], "coefficients": [1, 2]}`,
		"coefficient mismatch": `{"model_type": "linear", "feature_names": ["a", "b"], "coefficients": [1]}`,
		"unknown type":         `{"model_type": "xgboost", "feature_names": ["a"]}`,
		"forest without trees": `{"model_type": "random_forest", "feature_names": ["a"]}`,
		"feature out of range": `{"model_type": "random_forest", "feature_names": ["a"], "trees": [{"nodes": [
			{"feature": 3, "threshold": 1, "left": 1, "right": 2}, {"feature": -1}, {"feature": -1}]}]}`,
		"cyclic children": `{"model_type": "random_forest", "feature_names": ["a"], "trees": [{"nodes": [
			{"feature": 0, "threshold": 1, "left": 0, "right": 1}, {"feature": -1}]}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRegressor([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRegressorFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(forestArtifact), 0o600))

	reg, err := LoadRegressor(path)
	require.NoError(t, err)
	assert.Len(t, reg.FeatureNames(), 2)

	_, err = LoadRegressor(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
