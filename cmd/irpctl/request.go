package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type RequestRow struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	TeamID       int64           `json:"team_id"`
	ResourceType string          `json:"resource_type"`
	Name         string          `json:"name"`
	Config       json.RawMessage `json:"config,omitempty"`
	Status       string          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"req"},
	Short:   "Resource request commands",
}

var submitConfig string

var requestSubmitCmd = &cobra.Command{
	Use:   "submit <resource-type> <name>",
	Short: "Submit a resource request for approval",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := json.RawMessage("{}")
		if submitConfig != "" {
			if !json.Valid([]byte(submitConfig)) {
				fmt.Fprintln(os.Stderr, "Error: --config must be valid JSON")
				os.Exit(1)
			}
			cfg = json.RawMessage(submitConfig)
		}

		client := apiClient()
		req := map[string]interface{}{
			"resource_type": args[0],
			"name":          args[1],
			"config":        cfg,
		}

		var row RequestRow
		err := client.do("POST", "/v1/requests", req, &row, map[string]string{
			"Idempotency-Key": uuid.New().String(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Request %d submitted (%s).\n", row.ID, row.Status)
		fmt.Printf("Check status: irpctl request get %d\n", row.ID)
	},
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your resource requests",
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		var rows []RequestRow
		if err := client.Get("/v1/requests", &rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(rows)
	},
}

var requestGetCmd = &cobra.Command{
	Use:   "get <request-id>",
	Short: "Get request details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		var row RequestRow
		if err := client.Get("/v1/requests/"+args[0], &row); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(row)
	},
}

func init() {
	requestSubmitCmd.Flags().StringVarP(&submitConfig, "config", "c", "", "Resource configuration as JSON")
	requestCmd.AddCommand(requestSubmitCmd, requestListCmd, requestGetCmd)
	rootCmd.AddCommand(requestCmd)
}
