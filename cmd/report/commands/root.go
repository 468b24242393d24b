package commands

import (
	"fmt"
	"os"

	config "sparksales-api/configs"
	"sparksales-api/internal/app"
	"sparksales-api/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "SparkSales offline forecasting CLI",
	Long: `SparkSales offline CLI

Runs the CSV forecast pipeline against a local file using the same
models and insight rules as the API server.

Examples:
  go run ./cmd/report analyze --file sales.csv
  go run ./cmd/report pdf --file sales.csv --out Sales_report.pdf`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// buildApp 環境変数から設定を読み、モデルを読み込んだアプリを組み立てる
func buildApp() (*app.App, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.LogFormat = "console"
	if verbose {
		cfg.LogLevel = "debug"
	} else {
		cfg.LogLevel = "warn"
	}
	log := logger.NewWithWriter(cfg, os.Stderr)
	return app.New(cfg, log)
}
