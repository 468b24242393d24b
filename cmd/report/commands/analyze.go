package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sparksales-api/pkg/models"

	"github.com/spf13/cobra"
)

var (
	inputFile string
	pretty    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the CSV forecast pipeline and print the JSON response",
	Long: `Loads a CSV or XLSX sales file, predicts the next period and prints
the same JSON the /forecast/csv endpoint returns.

Example:
  go run ./cmd/report analyze --file sales.csv --pretty`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&inputFile, "file", "f", "", "CSV or XLSX sales file (required)")
	analyzeCmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	resp, err := forecastFile(inputFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}

// forecastFile ファイルを読み込んでCSV予測パイプラインを実行する
func forecastFile(path string) (models.CSVForecastResponse, error) {
	a, err := buildApp()
	if err != nil {
		return models.CSVForecastResponse{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return models.CSVForecastResponse{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return a.Forecasts.CSV(f, filepath.Base(path))
}
