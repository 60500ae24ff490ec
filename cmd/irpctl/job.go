package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type JobRow struct {
	JobID       string                 `json:"job_id"`
	RequestID   int64                  `json:"request_id"`
	Op          string                 `json:"op"`
	Status      string                 `json:"status"`
	CreatedAt   string                 `json:"created_at"`
	Attempt     int32                  `json:"attempt"`
	MaxAttempts int32                  `json:"max_attempts"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       map[string]interface{} `json:"error,omitempty"`
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Provisioning job commands (require an admin token)",
}

var jobStatus string

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		path := "/v1/admin/jobs"
		if jobStatus != "" {
			path += "?status=" + url.QueryEscape(jobStatus)
		}

		var rows []JobRow
		if err := client.Get(path, &rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(rows)
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Get job details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		var row JobRow
		if err := client.Get("/v1/admin/jobs/"+args[0], &row); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(row)
	},
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Watch a job until it finishes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		client := apiClient()

		for {
			var row JobRow
			if err := client.Get("/v1/admin/jobs/"+jobID, &row); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Job %s: %s (attempt %d/%d)\n", jobID[:8], row.Status, row.Attempt, row.MaxAttempts)

			// FAILED means a retry is scheduled, so keep watching.
			if row.Status == "SUCCEEDED" || row.Status == "DEAD" {
				if row.Result != nil {
					fmt.Printf("Result: %v\n", row.Result)
				}
				if row.Error != nil {
					fmt.Printf("Error: %v\n", row.Error)
				}
				break
			}

			time.Sleep(1 * time.Second)
		}
	},
}

func init() {
	jobListCmd.Flags().StringVarP(&jobStatus, "status", "s", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, DEAD)")
	jobCmd.AddCommand(jobListCmd, jobGetCmd, jobWatchCmd)
	rootCmd.AddCommand(jobCmd)
}
