package services

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	modelTypeRandomForest = "random_forest"
	modelTypeLinear       = "linear"
)

// RegressorArtifact 学習済み回帰モデルのエクスポート形式
type RegressorArtifact struct {
	ModelType    string         `json:"model_type"`
	ModelName    string         `json:"model_name"`
	FeatureNames []string       `json:"feature_names"`
	Intercept    float64        `json:"intercept,omitempty"`
	Coefficients []float64      `json:"coefficients,omitempty"`
	Trees        []TreeArtifact `json:"trees,omitempty"`
}

// TreeArtifact 回帰木1本分のノード配列。0番がルート
type TreeArtifact struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode 分岐ノード（Feature >= 0）または葉（Feature < 0）。
// x[Feature] <= Threshold なら Left へ進む
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// LoadRegressor ファイルから回帰モデルを読み込む
func LoadRegressor(path string) (Regressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regressor artifact: %w", err)
	}
	return ParseRegressor(data)
}

// ParseRegressor 回帰モデルをデコードして検証する
func ParseRegressor(data []byte) (Regressor, error) {
	var art RegressorArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode regressor artifact: %w", err)
	}
	if len(art.FeatureNames) == 0 {
		return nil, fmt.Errorf("regressor artifact declares no feature names")
	}
	seen := make(map[string]bool, len(art.FeatureNames))
	for _, name := range art.FeatureNames {
		if name == "" || seen[name] {
			return nil, fmt.Errorf("regressor artifact has empty or duplicate feature name %q", name)
		}
		seen[name] = true
	}

	switch art.ModelType {
	case modelTypeRandomForest:
		if len(art.Trees) == 0 {
			return nil, fmt.Errorf("random forest artifact has no trees")
		}
		for i, tree := range art.Trees {
			if err := validateTree(tree, len(art.FeatureNames)); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		name := art.ModelName
		if name == "" {
			name = "Random Forest Regressor"
		}
		return &ForestRegressor{name: name, features: art.FeatureNames, trees: art.Trees}, nil
	case modelTypeLinear:
		if len(art.Coefficients) != len(art.FeatureNames) {
			return nil, fmt.Errorf("linear artifact has %d coefficients for %d features",
				len(art.Coefficients), len(art.FeatureNames))
		}
		name := art.ModelName
		if name == "" {
			name = "Linear Regressor"
		}
		return &LinearRegressor{name: name, features: art.FeatureNames, intercept: art.Intercept, coef: art.Coefficients}, nil
	default:
		return nil, fmt.Errorf("unsupported model_type %q", art.ModelType)
	}
}

// validateTree 評価が必ず葉で終わるように子ノードの参照を検証する
func validateTree(tree TreeArtifact, nFeatures int) error {
	n := len(tree.Nodes)
	if n == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, node := range tree.Nodes {
		if node.Feature < 0 {
			continue
		}
		if node.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, node.Feature, nFeatures)
		}
		if node.Left <= i || node.Left >= n || node.Right <= i || node.Right >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, node.Left, node.Right)
		}
	}
	return nil
}

// ForestRegressor 各回帰木の出力の平均を返す
type ForestRegressor struct {
	name     string
	features []string
	trees    []TreeArtifact
}

func (f *ForestRegressor) Name() string           { return f.name }
func (f *ForestRegressor) FeatureNames() []string { return f.features }

func (f *ForestRegressor) Predict(x []float64) (float64, error) {
	if len(x) != len(f.features) {
		return 0, fmt.Errorf("expected %d features, got %d", len(f.features), len(x))
	}
	var total float64
	for _, tree := range f.trees {
		idx := 0
		for {
			node := tree.Nodes[idx]
			if node.Feature < 0 {
				total += node.Value
				break
			}
			if x[node.Feature] <= node.Threshold {
				idx = node.Left
			} else {
				idx = node.Right
			}
		}
	}
	return total / float64(len(f.trees)), nil
}

// LinearRegressor intercept + coefficients·x
type LinearRegressor struct {
	name      string
	features  []string
	intercept float64
	coef      []float64
}

func (l *LinearRegressor) Name() string           { return l.name }
func (l *LinearRegressor) FeatureNames() []string { return l.features }

func (l *LinearRegressor) Predict(x []float64) (float64, error) {
	if len(x) != len(l.coef) {
		return 0, fmt.Errorf("expected %d features, got %d", len(l.coef), len(x))
	}
	y := l.intercept
	for i, c := range l.coef {
		y += c * x[i]
	}
	return y, nil
}
