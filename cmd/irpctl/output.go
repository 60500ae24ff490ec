package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
)

func printResult(v interface{}) {
	if output == "json" {
		json.NewEncoder(os.Stdout).Encode(v)
		return
	}
	printTable(v)
}

func printTable(v interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	switch data := v.(type) {
	case []RequestRow:
		if len(data) == 0 {
			fmt.Println("No requests found.")
			return
		}
		fmt.Fprintln(w, "ID\tTYPE\tNAME\tSTATUS\tCREATED")
		for _, r := range data {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.ResourceType, r.Name, r.Status, r.CreatedAt)
		}
	case RequestRow:
		fmt.Fprintf(w, "ID:\t%d\n", data.ID)
		fmt.Fprintf(w, "Type:\t%s\n", data.ResourceType)
		fmt.Fprintf(w, "Name:\t%s\n", data.Name)
		fmt.Fprintf(w, "Status:\t%s\n", data.Status)
		fmt.Fprintf(w, "User:\t%d\n", data.UserID)
		fmt.Fprintf(w, "Team:\t%d\n", data.TeamID)
		fmt.Fprintf(w, "Created:\t%s\n", data.CreatedAt)
		fmt.Fprintf(w, "Updated:\t%s\n", data.UpdatedAt)
		if len(data.Config) > 0 {
			fmt.Fprintf(w, "Config:\t%s\n", truncate(string(data.Config), 120))
		}
		if data.Notes != "" {
			fmt.Fprintf(w, "Notes:\t%s\n", data.Notes)
		}
	case []JobRow:
		if len(data) == 0 {
			fmt.Println("No jobs found.")
			return
		}
		fmt.Fprintln(w, "JOB ID\tREQUEST\tOP\tSTATUS\tATTEMPT\tCREATED")
		for _, j := range data {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d/%d\t%s\n", j.JobID[:8], j.RequestID, j.Op, j.Status, j.Attempt, j.MaxAttempts, j.CreatedAt)
		}
	case JobRow:
		fmt.Fprintf(w, "Job ID:\t%s\n", data.JobID)
		fmt.Fprintf(w, "Request:\t%d\n", data.RequestID)
		fmt.Fprintf(w, "Op:\t%s\n", data.Op)
		fmt.Fprintf(w, "Status:\t%s\n", data.Status)
		fmt.Fprintf(w, "Attempt:\t%d/%d\n", data.Attempt, data.MaxAttempts)
		if data.Result != nil {
			fmt.Fprintf(w, "Result:\t%v\n", data.Result)
		}
		if data.Error != nil {
			fmt.Fprintf(w, "Error:\t%v\n", data.Error)
		}
	default:
		json.NewEncoder(os.Stdout).Encode(v)
	}
	w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
