package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/foldsync/foldsync/internal/credentials"
	"github.com/foldsync/foldsync/internal/engine"
	"github.com/foldsync/foldsync/internal/resolver"
	"github.com/foldsync/foldsync/internal/transport"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "foldsync",
	Short: "Bidirectional folder synchronization",
	Long: `foldsync keeps local folders synchronized with S3-compatible remote
storage. Changes are detected by content fingerprint, divergent edits go
through a configurable conflict policy, and the metadata database survives
restarts.

Configuration lives in ~/.foldsync/config.yaml and can be overridden with
FOLDSYNC_* environment variables.`,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.foldsync/config.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FOLDSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.endpoint", "localhost:9000")
	viper.SetDefault("server.bucket", "foldsync")
	viper.SetDefault("server.tls", false)
	viper.SetDefault("database.path", filepath.Join(configDir(), "foldsync.db"))
	viper.SetDefault("log.file", filepath.Join(configDir(), "foldsync.log"))
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("sync.interval", "30s")
	viper.SetDefault("sync.strategy", "last_write_wins")

	// A missing config file is fine; defaults and env cover everything.
	_ = viper.ReadInConfig()
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foldsync"
	}
	return filepath.Join(home, ".foldsync")
}

// logWriter returns the daemon log sink: a size-rotated file plus stderr.
func logWriter() io.Writer {
	rotated := &lumberjack.Logger{
		Filename:   viper.GetString("log.file"),
		MaxSize:    viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, rotated)
}

// newEngine builds a fully wired engine from the active configuration.
// The caller owns the returned engine and must Close it.
func newEngine(out io.Writer) (*engine.Engine, error) {
	trans, err := transport.NewMinio(transport.MinioConfig{
		Endpoint: viper.GetString("server.endpoint"),
		Bucket:   viper.GetString("server.bucket"),
		UseTLS:   viper.GetBool("server.tls"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure transport: %w", err)
	}

	strategy, err := resolver.ParseStrategy(viper.GetString("sync.strategy"))
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(viper.GetString("sync.interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.interval: %w", err)
	}

	cfg := engine.DefaultConfig()
	cfg.SyncInterval = interval
	cfg.DefaultStrategy = strategy
	cfg.Logger = log.New(out, "[foldsync] ", log.LstdFlags)

	e := engine.New(trans, credentials.NewKeyring(), cfg)
	if err := e.Initialize(viper.GetString("database.path"), viper.GetString("server.endpoint")); err != nil {
		return nil, err
	}

	// Re-establish the transport session recorded by a previous
	// 'foldsync login'. Commands that never touch the remote side work
	// without one.
	if _, err := e.RestoreSession(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not restore session: %v\n", err)
	}

	return e, nil
}
