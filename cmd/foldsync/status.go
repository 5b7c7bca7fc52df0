package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync folders and pending conflicts",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		folders, err := e.GetSyncFolders()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Folders: %d\n", len(folders))
		for _, f := range folders {
			fmt.Printf("  %s  %s  %s (%d bytes)\n", f.ID, f.Status, f.LocalPath, f.Size)
		}

		pending, err := e.PendingConflicts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Pending conflicts: %d\n", len(pending))
		for _, c := range pending {
			fmt.Printf("  %s  local %s / remote %s\n",
				c.Path,
				c.LocalModified.Format("2006-01-02 15:04:05"),
				c.RemoteModified.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
