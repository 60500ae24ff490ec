package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string
	output string
	token  string
)

var rootCmd = &cobra.Command{
	Use:   "irpctl",
	Short: "IRP CLI - Infrastructure Resource Provisioner command line tool",
	Long:  `irpctl is a command line interface for the Infrastructure Resource Provisioner (IRP).`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "a", "http://localhost:8080", "IRP API URL")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "API token (defaults to IRP_TOKEN or the saved login)")
}
