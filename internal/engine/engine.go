// Package engine provides the top-level sync orchestrator for foldsync.
//
// The engine wires the metadata store, the change detector, the filesystem
// watcher, the conflict resolver and the transport together: it owns folder
// lifecycle, schedules sync passes, applies the retry policy, and fans
// outcomes out through callbacks.
//
// Mutable sync state is scoped per folder id in a keyed map behind one
// lock, so folders can be added, removed, paused and synced independently;
// cross-folder operations proceed concurrently.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/foldsync/foldsync/internal/credentials"
	"github.com/foldsync/foldsync/internal/model"
	"github.com/foldsync/foldsync/internal/resolver"
	"github.com/foldsync/foldsync/internal/scanner"
	"github.com/foldsync/foldsync/internal/store"
	"github.com/foldsync/foldsync/internal/transport"
	"github.com/foldsync/foldsync/internal/watcher"
)

// Config holds engine tuning knobs.
type Config struct {
	// StatusInterval is how often the status callback ticks once started.
	StatusInterval time.Duration

	// SyncInterval is how often started engines trigger a pass over every
	// enabled idle folder. Zero disables periodic passes.
	SyncInterval time.Duration

	// DebounceDelay is handed to the watcher.
	DebounceDelay time.Duration

	// DefaultStrategy seeds the conflict resolver.
	DefaultStrategy resolver.Strategy

	// Logger for engine activity.
	Logger *log.Logger

	// Clock drives tickers and backoff sleeps. Tests inject a fake.
	Clock clockwork.Clock

	// Fs is the filesystem the scanner and size walks read. Tests inject
	// an in-memory afero.Fs.
	Fs afero.Fs
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StatusInterval:  time.Second,
		SyncInterval:    30 * time.Second,
		DebounceDelay:   watcher.DefaultDebounceDelay,
		DefaultStrategy: resolver.LastWriteWins,
		Logger:          log.New(os.Stderr, "[engine] ", log.LstdFlags),
		Clock:           clockwork.NewRealClock(),
		Fs:              afero.NewOsFs(),
	}
}

// StatusCallback receives a stats snapshot on status changes.
type StatusCallback func(model.SyncStats)

// FileChangeCallback receives one event per detected filesystem change.
type FileChangeCallback func(watcher.FileEvent)

// ErrorCallback receives a human-readable message on unrecoverable failure.
type ErrorCallback func(string)

// folderState carries the transient per-folder sync state. Its mutex
// serializes the mutating operations on one folder id; operations on
// different folders never contend on it.
type folderState struct {
	mu         sync.Mutex
	checkpoint time.Time // last remote "changes since" watermark
}

// Engine orchestrates bidirectional synchronization.
type Engine struct {
	cfg      *Config
	logger   *log.Logger
	clock    clockwork.Clock
	fs       afero.Fs
	creds    credentials.Store
	trans    transport.Transport
	scanner  *scanner.Scanner
	resolver *resolver.Resolver

	mu        sync.Mutex
	db        *store.Store
	serverURL string
	folders   map[string]*folderState
	watch     *watcher.Watcher
	username  string
	running   bool
	cancel    context.CancelFunc
	syncReq   chan string
	wg        sync.WaitGroup

	statusCb StatusCallback
	fileCb   FileChangeCallback
	errorCb  ErrorCallback

	stats transferCounters
}

// New creates an Engine over the given transport and credential store.
// Call Initialize before any folder or sync operation.
func New(t transport.Transport, creds credentials.Store, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	return &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		fs:       cfg.Fs,
		creds:    creds,
		trans:    t,
		scanner:  scanner.NewWithFs(cfg.Fs),
		resolver: resolver.New(t, cfg.DefaultStrategy, cfg.Logger),
		folders:  make(map[string]*folderState),
	}
}

// Initialize opens the metadata database and records the server URL.
//
// Safe to call repeatedly against the same database file; a second call
// with a different path fails. An error here is fatal to startup.
func (e *Engine) Initialize(dbPath, serverURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		if e.db.Path() != dbPath {
			return fmt.Errorf("engine already initialized against %s", e.db.Path())
		}
		e.serverURL = serverURL
		return nil
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata database: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize metadata schema: %w", err)
	}

	e.db = db
	e.serverURL = serverURL

	// Recover the folder set a previous engine instance persisted.
	persisted, err := db.ListFolders()
	if err != nil {
		_ = db.Close()
		e.db = nil
		return fmt.Errorf("failed to load persisted folders: %w", err)
	}
	for _, folder := range persisted {
		e.folders[folder.ID] = &folderState{}
	}

	e.logger.Printf("Initialized against %s (%d folders)", dbPath, len(persisted))
	return nil
}

// Close stops the engine and closes the metadata database.
func (e *Engine) Close() error {
	_ = e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// SetStatusCallback installs (replacing) the status sink.
func (e *Engine) SetStatusCallback(fn StatusCallback) {
	e.mu.Lock()
	e.statusCb = fn
	e.mu.Unlock()
}

// SetFileChangeCallback installs (replacing) the file-change sink.
func (e *Engine) SetFileChangeCallback(fn FileChangeCallback) {
	e.mu.Lock()
	e.fileCb = fn
	e.mu.Unlock()
}

// SetErrorCallback installs (replacing) the error sink.
func (e *Engine) SetErrorCallback(fn ErrorCallback) {
	e.mu.Lock()
	e.errorCb = fn
	e.mu.Unlock()
}

// SetManualResolutionCallback installs the decision callback consulted by
// the Manual conflict strategy.
func (e *Engine) SetManualResolutionCallback(fn resolver.DecisionFunc) {
	e.resolver.SetManualCallback(fn)
}

// SetDefaultStrategy replaces the strategy automatic resolution uses.
func (e *Engine) SetDefaultStrategy(s resolver.Strategy) {
	e.resolver.SetDefaultStrategy(s)
}

// Login authenticates against the remote service and stores the access
// material in the OS credential store.
//
// The transport's session token is process-scoped, so what persists is the
// secret the transport needs to re-establish a session; RestoreSession
// replays it in a fresh process.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	if _, err := e.trans.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := e.creds.SaveToken(username, password); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	if err := e.creds.SaveActiveUser(username); err != nil {
		return fmt.Errorf("failed to record session owner: %w", err)
	}

	e.mu.Lock()
	e.username = username
	e.mu.Unlock()

	e.logger.Printf("Logged in as %s", username)
	return nil
}

// RestoreSession re-authenticates the transport from the stored credential
// of the recorded session owner. Returns false with no error when no
// session was ever established.
func (e *Engine) RestoreSession(ctx context.Context) (bool, error) {
	username, err := e.creds.ActiveUser()
	if err != nil {
		return false, err
	}
	if username == "" {
		return false, nil
	}

	secret, err := e.creds.LoadToken(username)
	if err != nil {
		return false, err
	}
	if secret == "" {
		return false, nil
	}

	if _, err := e.trans.Login(ctx, username, secret); err != nil {
		return false, fmt.Errorf("failed to restore session for %s: %w", username, err)
	}

	e.mu.Lock()
	e.username = username
	e.mu.Unlock()

	e.logger.Printf("Restored session for %s", username)
	return true, nil
}

// Logout tears down the session and removes the stored token.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	username := e.username
	e.username = ""
	e.mu.Unlock()

	if username == "" {
		return nil
	}

	if err := e.trans.Logout(ctx); err != nil {
		e.logger.Printf("Transport logout failed: %v", err)
	}

	if err := e.creds.DeleteToken(username); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if err := e.creds.ClearActiveUser(); err != nil {
		return fmt.Errorf("failed to clear session owner: %w", err)
	}

	e.logger.Printf("Logged out %s", username)
	return nil
}

// IsAuthenticated reports whether a session token exists for the logged-in
// user. The token is read from the OS facility on every call; nothing is
// cached in process.
func (e *Engine) IsAuthenticated() bool {
	e.mu.Lock()
	username := e.username
	e.mu.Unlock()

	if username == "" {
		return false
	}

	has, err := e.creds.HasToken(username)
	if err != nil {
		e.logger.Printf("Failed to check session token: %v", err)
		return false
	}
	return has
}

// AddSyncFolder configures a new local-to-remote pairing and persists it.
// The local path must exist.
func (e *Engine) AddSyncFolder(localPath, remotePath string) (*model.SyncFolder, error) {
	db, err := e.requireDB()
	if err != nil {
		return nil, err
	}

	info, err := e.fs.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("local path %s: %w", localPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local path %s is not a directory", localPath)
	}

	folder, err := db.AddFolder(localPath, remotePath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.folders[folder.ID] = &folderState{}
	w := e.watch
	e.mu.Unlock()

	if w != nil {
		if err := w.Watch(localPath); err != nil {
			e.logger.Printf("Failed to watch %s: %v", localPath, err)
		}
	}

	e.logger.Printf("Added sync folder %s: %s <-> %s", folder.ID, localPath, remotePath)
	return folder, nil
}

// RemoveSyncFolder deletes a folder pairing and its metadata.
//
// The removal serializes against any in-flight pass over the same id, so
// pausing first is only needed to stop new passes from being scheduled.
func (e *Engine) RemoveSyncFolder(id string) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	st := e.state(id)
	if st == nil {
		return fmt.Errorf("sync folder %s: %w", id, store.ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	folder, err := db.GetFolder(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.folders, id)
	w := e.watch
	e.mu.Unlock()

	if w != nil && w.IsWatching(folder.LocalPath) {
		_ = w.Unwatch(folder.LocalPath)
	}

	if err := db.RemoveFolder(id); err != nil {
		return err
	}

	e.logger.Printf("Removed sync folder %s", id)
	return nil
}

// GetSyncFolders returns all configured folders. Folder sizes are
// recomputed from the local tree on every call, as status queries expect
// fresh numbers.
func (e *Engine) GetSyncFolders() ([]*model.SyncFolder, error) {
	db, err := e.requireDB()
	if err != nil {
		return nil, err
	}

	folders, err := db.ListFolders()
	if err != nil {
		return nil, err
	}

	for _, folder := range folders {
		size, err := e.folderSize(folder.LocalPath)
		if err != nil {
			e.logger.Printf("Failed to size %s: %v", folder.LocalPath, err)
			continue
		}
		folder.Size = size
		if err := db.UpdateFolderSize(folder.ID, size); err != nil {
			e.logger.Printf("Failed to persist size for %s: %v", folder.ID, err)
		}
	}

	return folders, nil
}

// PauseSync transitions a folder to PAUSED. A folder cannot be SYNCING
// while paused; an in-flight pass finishes first because both hold the
// per-folder lock.
func (e *Engine) PauseSync(id string) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	st := e.state(id)
	if st == nil {
		return fmt.Errorf("sync folder %s: %w", id, store.ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := db.UpdateFolderStatus(id, model.FolderPaused); err != nil {
		return err
	}

	e.logger.Printf("Paused sync folder %s", id)
	e.pushStatus()
	return nil
}

// ResumeSync transitions a paused folder back to IDLE.
func (e *Engine) ResumeSync(id string) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	st := e.state(id)
	if st == nil {
		return fmt.Errorf("sync folder %s: %w", id, store.ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := db.UpdateFolderStatus(id, model.FolderIdle); err != nil {
		return err
	}

	e.logger.Printf("Resumed sync folder %s", id)
	e.pushStatus()
	return nil
}

// PendingConflicts returns all conflicts still awaiting resolution.
func (e *Engine) PendingConflicts() ([]*model.Conflict, error) {
	db, err := e.requireDB()
	if err != nil {
		return nil, err
	}
	return db.PendingConflicts()
}

// Start begins background operation: the watcher observes every folder,
// the status callback ticks, and periodic passes run when configured.
func (e *Engine) Start() error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}

	w, err := watcher.New(e.logger)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.SetDebounceDelay(e.cfg.DebounceDelay)
	w.SetCallback(e.handleFileEvent)

	ctx, cancel := context.WithCancel(context.Background())
	e.watch = w
	e.cancel = cancel
	e.syncReq = make(chan string, 64)
	e.running = true
	e.mu.Unlock()

	folders, err := db.ListFolders()
	if err != nil {
		e.logger.Printf("Failed to list folders at start: %v", err)
	}
	for _, folder := range folders {
		if !folder.Enabled {
			continue
		}
		if err := w.Watch(folder.LocalPath); err != nil {
			e.logger.Printf("Failed to watch %s: %v", folder.LocalPath, err)
		}
	}

	e.wg.Add(1)
	go e.run(ctx)

	e.logger.Printf("Engine started (%d folders watched)", len(folders))
	return nil
}

// Stop halts background operation. In-flight transfers finish, but no new
// passes or retries start once the cancellation flag is observed.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	w := e.watch
	e.watch = nil
	e.syncReq = nil
	e.mu.Unlock()

	cancel()
	if w != nil {
		_ = w.Stop()
	}
	e.wg.Wait()

	e.logger.Printf("Engine stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// run is the background scheduling loop: status ticks and periodic passes.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	// One immediate push so a status is observable right after Start.
	e.pushStatus()

	// Startup pass so offline changes reconcile before the first tick.
	e.syncAllFolders(ctx)

	e.mu.Lock()
	syncReq := e.syncReq
	e.mu.Unlock()

	statusTicker := e.clock.NewTicker(e.cfg.StatusInterval)
	defer statusTicker.Stop()

	var syncCh <-chan time.Time
	if e.cfg.SyncInterval > 0 {
		syncTicker := e.clock.NewTicker(e.cfg.SyncInterval)
		defer syncTicker.Stop()
		syncCh = syncTicker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-statusTicker.Chan():
			e.pushStatus()

		case <-syncCh:
			e.syncAllFolders(ctx)

		case id := <-syncReq:
			if err := e.TriggerBidirectionalSync(ctx, id); err != nil {
				e.logger.Printf("Event-driven pass failed for %s: %v", id, err)
			}
		}
	}
}

// syncAllFolders triggers a pass over every enabled idle folder.
// Passes run sequentially here; concurrent passes come from explicit
// TriggerBidirectionalSync calls on other goroutines.
func (e *Engine) syncAllFolders(ctx context.Context) {
	db, err := e.requireDB()
	if err != nil {
		return
	}

	folders, err := db.ListFolders()
	if err != nil {
		e.logger.Printf("Failed to list folders for periodic pass: %v", err)
		return
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			return
		}
		if !folder.Enabled || folder.Status == model.FolderPaused {
			continue
		}
		if err := e.TriggerBidirectionalSync(ctx, folder.ID); err != nil {
			e.logger.Printf("Periodic pass failed for %s: %v", folder.ID, err)
		}
	}
}

// handleFileEvent forwards debounced watcher events to the installed
// callback and queues a pass for the containing folder. It fires on the
// watcher goroutine, so the pass itself runs on the scheduling loop.
func (e *Engine) handleFileEvent(ev watcher.FileEvent) {
	e.mu.Lock()
	fn := e.fileCb
	syncReq := e.syncReq
	e.mu.Unlock()

	if fn != nil {
		fn(ev)
	}

	if syncReq == nil {
		return
	}
	folder := e.folderForPath(ev.Path)
	if folder == nil {
		return
	}
	select {
	case syncReq <- folder.ID:
	default: // a pass is already queued, the backlog covers this event
	}
}

// folderForPath maps an observed filesystem path to its sync folder.
func (e *Engine) folderForPath(path string) *model.SyncFolder {
	db, err := e.requireDB()
	if err != nil {
		return nil
	}
	folders, err := db.ListFolders()
	if err != nil {
		return nil
	}
	for _, folder := range folders {
		if path == folder.LocalPath ||
			strings.HasPrefix(path, folder.LocalPath+string(os.PathSeparator)) {
			return folder
		}
	}
	return nil
}

// reportError logs and fans an unrecoverable failure out to the error
// callback.
func (e *Engine) reportError(msg string) {
	e.logger.Printf("ERROR: %s", msg)

	e.mu.Lock()
	fn := e.errorCb
	e.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

// state returns the keyed per-folder state, or nil for unknown ids.
func (e *Engine) state(id string) *folderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.folders[id]
}

func (e *Engine) requireDB() (*store.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil, fmt.Errorf("engine not initialized")
	}
	return e.db, nil
}

// folderSize walks the local tree and sums regular-file sizes.
func (e *Engine) folderSize(root string) (int64, error) {
	var total int64
	err := afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entry, skip
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
