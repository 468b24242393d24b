package main

import (
	"os"

	"sparksales-api/cmd/report/commands"
)

// main はオフラインでCSV予測とPDFレポート作成を行うCLIの入口です
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
