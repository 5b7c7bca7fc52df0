package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync engine in the foreground",
	Long: `Run the sync engine until interrupted.

The daemon watches every enabled folder for filesystem changes, runs
periodic bidirectional passes, and logs activity to the rotated log file.
Stop it with Ctrl-C or SIGTERM; in-flight transfers finish first.`,
	Run: func(cmd *cobra.Command, args []string) {
		e, err := newEngine(logWriter())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		e.SetErrorCallback(func(msg string) {
			fmt.Fprintf(os.Stderr, "sync error: %s\n", msg)
		})

		if err := e.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting engine: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("foldsync daemon running, press Ctrl-C to stop")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		if err := e.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping engine: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
