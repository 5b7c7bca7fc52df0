package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [folder-id]",
	Short: "Run one bidirectional sync pass",
	Long: `Run one bidirectional sync pass and exit.

With a folder id only that pairing syncs; without arguments every enabled
folder syncs in turn. Authentication must already be established with
'foldsync login'.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		ctx := context.Background()

		if len(args) == 1 {
			if err := e.TriggerBidirectionalSync(ctx, args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Synced %s\n", args[0])
			return
		}

		folders, err := e.GetSyncFolders()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		failed := 0
		for _, f := range folders {
			if !f.Enabled {
				continue
			}
			if err := e.TriggerBidirectionalSync(ctx, f.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Error syncing %s: %v\n", f.LocalPath, err)
				failed++
				continue
			}
			fmt.Printf("Synced %s\n", f.LocalPath)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
