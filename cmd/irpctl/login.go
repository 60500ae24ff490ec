package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type UserRow struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	TeamID    *int64 `json:"team_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type TokenResponse struct {
	Token string  `json:"token"`
	User  UserRow `json:"user"`
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and save an API token",
	Long:  `Log in with a username. The password is read from stdin, so it never appears in shell history.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "Error: reading password: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr)
		password := strings.TrimRight(line, "\r\n")

		client := NewClient(apiURL, "")
		var resp TokenResponse
		req := map[string]string{"username": username, "password": password}
		if err := client.Post("/v1/auth/login", req, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := saveToken(resp.Token); err != nil {
			fmt.Fprintf(os.Stderr, "Error: saving token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Logged in as %s.\n", resp.User.Username)
		if resp.User.IsAdmin {
			fmt.Println("Admin commands are available.")
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Run: func(cmd *cobra.Command, args []string) {
		client := apiClient()

		var user UserRow
		if err := client.Get("/v1/me", &user); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s <%s>", user.Username, user.Email)
		if user.IsAdmin {
			fmt.Print(" (admin)")
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, whoamiCmd)
}
