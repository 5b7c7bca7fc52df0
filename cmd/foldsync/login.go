package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/foldsync/foldsync/internal/credentials"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate and store the session token",
	Long: `Authenticate against the remote storage service.

The password is read from the terminal without echo. On success the
session token is stored in the OS credential facility (Keychain, Secret
Service or Credential Manager), never on disk.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		fmt.Fprintf(os.Stderr, "Password for %s: ", username)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}

		if strings.TrimSpace(string(password)) == "" {
			fmt.Fprintf(os.Stderr, "Error: password must not be empty\n")
			os.Exit(1)
		}

		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		if err := e.Login(context.Background(), username, string(password)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Logged in as %s\n", username)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove the stored session token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		creds := credentials.NewKeyring()
		if err := creds.DeleteToken(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := creds.ClearActiveUser(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Logged out %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
