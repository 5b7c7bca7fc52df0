package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/transport"
)

var getCmd = &cobra.Command{
	Use:   "get <remote-path> <local-path>",
	Short: "Download a single remote file with progress",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		err = e.DownloadFileWithProgress(context.Background(), args[0], args[1], func(p transport.Progress) {
			fmt.Fprintf(os.Stderr, "\r%6.1f%%  %d/%d bytes  %.0f B/s",
				p.PercentComplete, p.BytesDownloaded, p.TotalBytes, p.SpeedBytesPerSec)
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Downloaded %s\n", args[1])
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
