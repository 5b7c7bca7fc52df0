package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage sync folder pairings",
}

var folderAddCmd = &cobra.Command{
	Use:   "add <local-path> <remote-path>",
	Short: "Pair a local folder with a remote path",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		local, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		folder, err := e.AddSyncFolder(local, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error adding folder: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Added %s\n", folder.ID)
		fmt.Printf("  %s <-> %s\n", folder.LocalPath, folder.RemotePath)
	},
}

var folderRemoveCmd = &cobra.Command{
	Use:   "remove <folder-id>",
	Short: "Remove a sync folder pairing and its metadata",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		if err := e.RemoveSyncFolder(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing folder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %s\n", args[0])
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sync folders",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		folders, err := e.GetSyncFolders()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing folders: %v\n", err)
			os.Exit(1)
		}

		if len(folders) == 0 {
			fmt.Println("No sync folders configured")
			return
		}

		for _, f := range folders {
			enabled := "enabled"
			if !f.Enabled {
				enabled = "disabled"
			}
			fmt.Printf("%s  [%s, %s]\n", f.ID, f.Status, enabled)
			fmt.Printf("  %s <-> %s (%d bytes)\n", f.LocalPath, f.RemotePath, f.Size)
		}
	},
}

var folderPauseCmd = &cobra.Command{
	Use:   "pause <folder-id>",
	Short: "Pause synchronization for a folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		if err := e.PauseSync(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error pausing folder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Paused %s\n", args[0])
	},
}

var folderResumeCmd = &cobra.Command{
	Use:   "resume <folder-id>",
	Short: "Resume synchronization for a paused folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		if err := e.ResumeSync(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming folder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Resumed %s\n", args[0])
	},
}

func init() {
	folderCmd.AddCommand(folderAddCmd)
	folderCmd.AddCommand(folderRemoveCmd)
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderPauseCmd)
	folderCmd.AddCommand(folderResumeCmd)
	rootCmd.AddCommand(folderCmd)
}
