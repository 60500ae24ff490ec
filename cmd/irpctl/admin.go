package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

type JobRef struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_href"`
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands (require an admin token)",
}

var adminStatus string

var adminRequestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List resource requests across all users",
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		path := "/v1/admin/requests"
		if adminStatus != "" {
			path += "?status=" + url.QueryEscape(adminStatus)
		}

		var rows []RequestRow
		if err := client.Get(path, &rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(rows)
	},
}

var reviewNotes string

var adminApproveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending request and queue provisioning",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		var body interface{}
		if reviewNotes != "" {
			body = map[string]string{"notes": reviewNotes}
		}

		var resp JobRef
		if err := client.Post("/v1/admin/requests/"+args[0]+":approve", body, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Request %s approved, provisioning queued.\n", args[0])
		fmt.Printf("Job ID: %s\n", resp.JobID)
		fmt.Printf("Check status: irpctl job get %s\n", resp.JobID)
	},
}

var adminRejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		body := map[string]string{"notes": reviewNotes}
		var row RequestRow
		if err := client.Post("/v1/admin/requests/"+args[0]+":reject", body, &row); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Request %d rejected.\n", row.ID)
	},
}

var adminDestroyCmd = &cobra.Command{
	Use:   "destroy <request-id>",
	Short: "Queue teardown of a provisioned resource",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		var resp JobRef
		if err := client.Post("/v1/admin/requests/"+args[0]+":destroy", nil, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Destroy queued for request %s.\n", args[0])
		fmt.Printf("Job ID: %s\n", resp.JobID)
	},
}

func init() {
	adminRequestsCmd.Flags().StringVarP(&adminStatus, "status", "s", "", "Filter by status (pending, approved, provisioning, provisioned, failed, rejected, destroyed)")
	adminApproveCmd.Flags().StringVarP(&reviewNotes, "notes", "n", "", "Review notes")
	adminRejectCmd.Flags().StringVarP(&reviewNotes, "notes", "n", "", "Review notes (required)")
	adminRejectCmd.MarkFlagRequired("notes")

	adminCmd.AddCommand(adminRequestsCmd, adminApproveCmd, adminRejectCmd, adminDestroyCmd)
	rootCmd.AddCommand(adminCmd)
}
