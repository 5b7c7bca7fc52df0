// Package resolver decides the outcome when local and remote copies of one
// path diverge under concurrent edits.
package resolver

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/foldsync/foldsync/internal/transport"
)

// Strategy selects the policy for resolving one divergent path.
type Strategy int

const (
	// LastWriteWins uploads if the local copy is strictly newer, otherwise
	// downloads. Equal timestamps resolve to download: the remote copy is
	// the deliberate tie-breaker.
	LastWriteWins Strategy = iota
	// LocalWins always uploads, independent of timestamps.
	LocalWins
	// RemoteWins always downloads, independent of timestamps.
	RemoteWins
	// KeepBoth preserves both versions: the remote copy lands under a
	// conflict-marked local name and both files end up remote.
	KeepBoth
	// Manual delegates the decision to the installed callback.
	Manual
)

// String returns a human-readable representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case LastWriteWins:
		return "last_write_wins"
	case LocalWins:
		return "local_wins"
	case RemoteWins:
		return "remote_wins"
	case KeepBoth:
		return "keep_both"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "last_write_wins", "lww":
		return LastWriteWins, nil
	case "local_wins":
		return LocalWins, nil
	case "remote_wins":
		return RemoteWins, nil
	case "keep_both":
		return KeepBoth, nil
	case "manual":
		return Manual, nil
	default:
		return LastWriteWins, fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// Outcome is the terminal resolution recorded in the conflict log.
type Outcome string

const (
	// OutcomeUploaded means the local copy replaced the remote one.
	OutcomeUploaded Outcome = "uploaded"
	// OutcomeDownloaded means the remote copy replaced the local one.
	OutcomeDownloaded Outcome = "downloaded"
	// OutcomeRenamed means both versions survive under distinct names.
	OutcomeRenamed Outcome = "renamed"
	// OutcomeManual means the divergence was handed off for resolution
	// outside the engine.
	OutcomeManual Outcome = "manual"
)

// ConflictInfo describes one divergent path.
type ConflictInfo struct {
	LocalPath      string
	RemotePath     string
	LocalModified  time.Time
	RemoteModified time.Time
}

// Result reports a successful resolution.
type Result struct {
	// Outcome is the terminal resolution.
	Outcome Outcome
	// ConflictPath is the conflict-marked local path KeepBoth created.
	// Empty for every other strategy.
	ConflictPath string
}

// DecisionFunc is the manual-resolution callback. It must return one of
// the four concrete strategies; returning Manual again fails the
// resolution.
type DecisionFunc func(localPath, remotePath string) Strategy

// Resolver applies a resolution strategy to divergent paths.
//
// Transfer failures inside a strategy are returned as errors without
// rolling back partial transfers; the engine logs the outcome to the
// conflict table either way.
type Resolver struct {
	transport transport.Transport
	logger    *log.Logger

	mu              sync.Mutex
	defaultStrategy Strategy
	manualFn        DecisionFunc
}

// New creates a Resolver with the given default strategy.
// If logger is nil, a default logger writing to stderr is used.
func New(t transport.Transport, defaultStrategy Strategy, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[resolver] ", log.LstdFlags)
	}
	return &Resolver{
		transport:       t,
		logger:          logger,
		defaultStrategy: defaultStrategy,
	}
}

// SetDefaultStrategy replaces the strategy ResolveAuto uses.
func (r *Resolver) SetDefaultStrategy(s Strategy) {
	r.mu.Lock()
	r.defaultStrategy = s
	r.mu.Unlock()
}

// DefaultStrategy returns the strategy ResolveAuto uses.
func (r *Resolver) DefaultStrategy() Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultStrategy
}

// SetManualCallback installs (replacing) the manual decision callback.
func (r *Resolver) SetManualCallback(fn DecisionFunc) {
	r.mu.Lock()
	r.manualFn = fn
	r.mu.Unlock()
}

// ResolveAuto resolves using the configured default strategy.
func (r *Resolver) ResolveAuto(ctx context.Context, c ConflictInfo) (Result, error) {
	return r.Resolve(ctx, c, r.DefaultStrategy())
}

// Resolve applies one strategy to a divergent path.
func (r *Resolver) Resolve(ctx context.Context, c ConflictInfo, strategy Strategy) (Result, error) {
	switch strategy {
	case LastWriteWins:
		if c.LocalModified.After(c.RemoteModified) {
			return r.upload(ctx, c)
		}
		return r.download(ctx, c)

	case LocalWins:
		return r.upload(ctx, c)

	case RemoteWins:
		return r.download(ctx, c)

	case KeepBoth:
		return r.keepBoth(ctx, c)

	case Manual:
		return r.manual(ctx, c)

	default:
		return Result{}, fmt.Errorf("unknown resolution strategy %d", strategy)
	}
}

func (r *Resolver) upload(ctx context.Context, c ConflictInfo) (Result, error) {
	if err := r.transport.UploadFile(ctx, c.LocalPath, c.RemotePath); err != nil {
		return Result{}, fmt.Errorf("upload failed for %s: %w", c.LocalPath, err)
	}
	r.logger.Printf("Resolved %s: uploaded local copy", c.LocalPath)
	return Result{Outcome: OutcomeUploaded}, nil
}

func (r *Resolver) download(ctx context.Context, c ConflictInfo) (Result, error) {
	if err := r.transport.DownloadFile(ctx, c.RemotePath, c.LocalPath); err != nil {
		return Result{}, fmt.Errorf("download failed for %s: %w", c.RemotePath, err)
	}
	r.logger.Printf("Resolved %s: downloaded remote copy", c.LocalPath)
	return Result{Outcome: OutcomeDownloaded}, nil
}

// keepBoth preserves both versions. The remote copy is downloaded into a
// conflict-marked local path first; if that download fails nothing else
// happens. Then the untouched local original and the new conflict file are
// both uploaded, so neither version is lost.
func (r *Resolver) keepBoth(ctx context.Context, c ConflictInfo) (Result, error) {
	conflictLocal := ConflictPath(c.LocalPath)
	conflictRemote := ConflictPath(c.RemotePath)

	if err := r.transport.DownloadFile(ctx, c.RemotePath, conflictLocal); err != nil {
		return Result{}, fmt.Errorf("keep-both download failed for %s: %w", c.RemotePath, err)
	}

	if err := r.transport.UploadFile(ctx, c.LocalPath, c.RemotePath); err != nil {
		return Result{}, fmt.Errorf("keep-both upload failed for %s: %w", c.LocalPath, err)
	}

	if err := r.transport.UploadFile(ctx, conflictLocal, conflictRemote); err != nil {
		return Result{}, fmt.Errorf("keep-both upload failed for %s: %w", conflictLocal, err)
	}

	r.logger.Printf("Resolved %s: kept both versions (%s)", c.LocalPath, conflictLocal)
	return Result{Outcome: OutcomeRenamed, ConflictPath: conflictLocal}, nil
}

func (r *Resolver) manual(ctx context.Context, c ConflictInfo) (Result, error) {
	r.mu.Lock()
	fn := r.manualFn
	r.mu.Unlock()

	if fn == nil {
		return Result{}, fmt.Errorf("manual resolution requested for %s but no decision callback is installed", c.LocalPath)
	}

	decided := fn(c.LocalPath, c.RemotePath)
	if decided == Manual {
		return Result{}, fmt.Errorf("manual resolution for %s: decision callback returned manual, recursion is not allowed", c.LocalPath)
	}

	return r.Resolve(ctx, c, decided)
}

// conflictMarker is inserted before the extension of a conflict-marked
// file name.
const conflictMarker = " (conflict)"

// ConflictPath derives the conflict-marked sibling of a path, preserving
// the extension: "document.pdf" becomes "document (conflict).pdf".
func ConflictPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + conflictMarker + ext
}
