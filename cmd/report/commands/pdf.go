package commands

import (
	"fmt"
	"os"

	"sparksales-api/pkg/services"

	"github.com/spf13/cobra"
)

var outputFile string

var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Forecast a sales file and write the PDF business report",
	Long: `Runs the CSV forecast pipeline on a local file and renders the
result as the same PDF the /download-report endpoint returns.

Example:
  go run ./cmd/report pdf --file sales.csv --out Sales_report.pdf`,
	RunE: runPDF,
}

func init() {
	pdfCmd.Flags().StringVarP(&inputFile, "file", "f", "", "CSV or XLSX sales file (required)")
	pdfCmd.Flags().StringVarP(&outputFile, "out", "o", services.ReportFileName, "output PDF path")
	_ = pdfCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(pdfCmd)
}

func runPDF(cmd *cobra.Command, _ []string) error {
	resp, err := forecastFile(inputFile)
	if err != nil {
		return err
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputFile, err)
	}
	reportID, err := services.NewReportService().Render(out, resp)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (report %s, predicted sales %.2f)\n", outputFile, reportID, resp.PredictedSales)
	return nil
}
