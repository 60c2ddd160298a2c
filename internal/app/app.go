package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"snip-go/internal/clipboard"
	"snip-go/internal/config"
	"snip-go/internal/database"
	"snip-go/internal/encryption"
	"snip-go/internal/engine"
	"snip-go/internal/library"
	"snip-go/internal/macro"
	"snip-go/internal/matcher"
	"snip-go/internal/model"
	"snip-go/internal/placeholder"
	"snip-go/internal/site"
	"snip-go/internal/snip"
	"snip-go/internal/store"
	"snip-go/internal/suggest"
	"snip-go/internal/tree"
)

// ErrLocked is returned by library operations before Unlock when the store
// is encrypted.
var ErrLocked = errors.New("snippets are encrypted: unlock required")

// Clipboard reads and writes the host clipboard.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
	Write(text string) error
}

// Entry is a node flattened for display.
type Entry struct {
	Kind tree.Kind
	Name string
	// Path holds the enclosing folder names, root first.
	Path  []string
	Depth int
	// Preview is the plain text of a snippet body.
	Preview string
}

// SnipApp is the application layer between the CLI or bridge and the
// snippet library. It constructs all dependencies from config, exposes
// high-level operations taking raw strings, and manages the DB lifecycle
// on Close.
type SnipApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	encrypted *store.EncryptedStore
	library   *library.Service
	expander  *macro.Expander
	clipboard Clipboard
	clock     snip.Clock
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File

	loaded  bool
	mutated bool
}

type options struct {
	stderr    io.Writer
	level     slog.Leveler
	clipboard Clipboard
	clock     snip.Clock
}

// Option configures NewSnipApp.
type Option func(*options)

// WithLogOutput mirrors log output to w, usually os.Stderr.
func WithLogOutput(w io.Writer) Option { return func(o *options) { o.stderr = w } }

// WithLogLevel drops records below level.
func WithLogLevel(level slog.Leveler) Option { return func(o *options) { o.level = level } }

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option { return func(o *options) { o.clipboard = c } }

// WithClock sets the clock for timestamps and date macros.
func WithClock(c snip.Clock) Option { return func(o *options) { o.clock = c } }

// NewSnipApp creates a fully wired SnipApp from the given config.
// operation identifies the command being run (e.g. "AddSnippet", "Serve").
// When encryption is off the snippet tree is loaded immediately; otherwise
// call Unlock first. The caller must call Close when done.
func NewSnipApp(ctx context.Context, cfg *config.Config, operation string, opts ...Option) (*SnipApp, error) {
	o := options{level: slog.LevelInfo, clock: snip.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clipboard == nil {
		o.clipboard = clipboard.NewSystem()
	}

	opID := uuid.NewString()[:8]
	logger, logFile, err := newLogger(cfg.LogDir, opID, o.level, o.stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, o.clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	closeAll := func() {
		db.Close()
		logFile.Close()
	}

	st, err := store.NewStoreFromConfig(ctx, cfg.Store, db)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	var encrypted *store.EncryptedStore
	if cfg.Encryption.Enabled {
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			closeAll()
			return nil, fmt.Errorf("encryption enabled but keys are missing: run 'snip keys init'")
		}
		encrypted = store.NewEncryptedStore(st, enc, nil)
		st = encrypted
	}

	format, err := tree.ParseFormat(cfg.Store.Format)
	if err != nil {
		closeAll()
		return nil, err
	}

	lib := library.New(st,
		library.WithClock(o.clock),
		library.WithLogger(log),
		library.WithFormat(format),
		library.WithNameMaxLength(cfg.Limits.NameMaxLength),
	)

	a := &SnipApp{
		cfg:       cfg,
		db:        db,
		encrypted: encrypted,
		library:   lib,
		expander: macro.New(lib,
			macro.WithClock(o.clock),
			macro.WithClipboard(o.clipboard),
			macro.WithLogger(log),
		),
		clipboard: o.clipboard,
		clock:     o.clock,
		logger:    logger,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}

	if encrypted == nil {
		if err := a.load(); err != nil {
			closeAll()
			return nil, err
		}
	}
	return a, nil
}

func (a *SnipApp) load() error {
	if err := a.library.Load(); err != nil {
		return err
	}
	a.loaded = true
	return nil
}

// Locked reports whether Unlock is needed before library operations.
func (a *SnipApp) Locked() bool {
	return !a.loaded
}

// Unlock decrypts the private key with passphrase and loads the snippets.
func (a *SnipApp) Unlock(passphrase string) error {
	if a.encrypted == nil {
		return nil
	}
	if err := a.encrypted.Unlock(passphrase); err != nil {
		return err
	}
	return a.load()
}

// Library returns the snippet library. It is empty until the app is
// unlocked.
func (a *SnipApp) Library() *library.Service { return a.library }

// Expander returns the macro expander bound to the library.
func (a *SnipApp) Expander() *macro.Expander { return a.expander }

// Logger returns the app logger as a snip.Logger.
func (a *SnipApp) Logger() snip.Logger { return &slogAdapter{l: a.logger} }

// Clock returns the app clock.
func (a *SnipApp) Clock() snip.Clock { return a.clock }

// Config returns the loaded configuration.
func (a *SnipApp) Config() *config.Config { return a.cfg }

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. Only library-mutating commands call it.
func (a *SnipApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// mutate runs fn against the loaded library as a recorded operation.
func (a *SnipApp) mutate(parameters string, fn func() error) error {
	if !a.loaded {
		return ErrLocked
	}
	if err := a.persistOperation(parameters); err != nil {
		return err
	}
	if err := fn(); err != nil {
		a.op.Fail()
		return err
	}
	a.mutated = true
	return nil
}

func (a *SnipApp) read() error {
	if !a.loaded {
		return ErrLocked
	}
	return nil
}

// AddSnippet creates a snippet. When rich is true text is treated as HTML.
func (a *SnipApp) AddSnippet(name, text string, rich bool, folder string) error {
	body := tree.PlainBody(text)
	if rich {
		body = tree.RichBody(text, nil)
	}
	return a.mutate(name, func() error {
		_, err := a.library.AddSnippet(name, body, folder)
		return err
	})
}

// EditSnippet replaces a snippet body, keeping its rich or plain kind.
func (a *SnipApp) EditSnippet(name, text string) error {
	return a.mutate(name, func() error {
		sn := a.library.Snippet(name)
		if sn == nil {
			return fmt.Errorf("snippet %q: %w", name, tree.ErrNotFound)
		}
		return a.library.Edit(name, sn.Body.WithSource(text))
	})
}

// AddFolder creates a folder inside parent ("" for the root).
func (a *SnipApp) AddFolder(name, parent string) error {
	return a.mutate(name, func() error {
		_, err := a.library.AddFolder(name, parent)
		return err
	})
}

func parseKind(s string) (tree.Kind, error) {
	if s == "" {
		return tree.KindSnippet, nil
	}
	k, ok := tree.ParseKind(s)
	if !ok {
		return 0, fmt.Errorf("unknown kind %q: want snip or folder", s)
	}
	return k, nil
}

// Remove deletes the named snippet or folder. kind is "snip" (default) or
// "folder".
func (a *SnipApp) Remove(name, kind string) error {
	k, err := parseKind(kind)
	if err != nil {
		return err
	}
	return a.mutate(name, func() error {
		return a.library.Remove(name, k)
	})
}

// Move re-homes a node under folder ("" for the root).
func (a *SnipApp) Move(name, kind, folder string) error {
	k, err := parseKind(kind)
	if err != nil {
		return err
	}
	return a.mutate(name+" -> "+folder, func() error {
		return a.library.Move(name, k, folder)
	})
}

// Rename renames a node.
func (a *SnipApp) Rename(oldName, newName, kind string) error {
	k, err := parseKind(kind)
	if err != nil {
		return err
	}
	return a.mutate(oldName+" -> "+newName, func() error {
		return a.library.Rename(oldName, newName, k)
	})
}

// Sort orders a folder by mode ("alphabetic" or "timestamp").
func (a *SnipApp) Sort(folder, mode string, descending, recursive bool) error {
	m, err := tree.ParseSortMode(mode)
	if err != nil {
		return err
	}
	opts := tree.SortOptions{Mode: m, Descending: descending, Recursive: recursive}
	return a.mutate(folder, func() error {
		return a.library.Sort(folder, opts)
	})
}

// Import reads an export in either encoding. replace discards the existing
// tree instead of merging into it.
func (a *SnipApp) Import(data []byte, replace bool) (*library.ImportResult, error) {
	mode := library.ImportMerge
	if replace {
		mode = library.ImportReplace
	}
	var res *library.ImportResult
	err := a.mutate(fmt.Sprintf("replace=%t", replace), func() error {
		var err error
		res, err = a.library.Import(data, mode)
		return err
	})
	return res, err
}

// Export encodes the tree. format is "json" or "array".
func (a *SnipApp) Export(format string) ([]byte, error) {
	if err := a.read(); err != nil {
		return nil, err
	}
	f, err := tree.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return a.library.Export(f)
}

// List returns every node in document order.
func (a *SnipApp) List() ([]Entry, error) {
	if err := a.read(); err != nil {
		return nil, err
	}
	var entries []Entry
	a.library.View(func(t *tree.Tree) {
		names := []string{t.Root().Name()}
		t.Walk(func(n tree.Node, path []int) bool {
			depth := len(path) - 1
			names = names[:depth+1]
			entries = append(entries, newEntry(n, append([]string(nil), names...), depth))
			if n.Kind() == tree.KindFolder {
				names = append(names, n.Name())
			}
			return true
		})
	})
	return entries, nil
}

// Search returns the ranked matches for text.
func (a *SnipApp) Search(text string) ([]Entry, error) {
	if err := a.read(); err != nil {
		return nil, err
	}
	var entries []Entry
	for _, n := range a.library.Search(text) {
		path, err := a.library.Path(n)
		if err != nil {
			return nil, err
		}
		entries = append(entries, newEntry(n, path, len(path)-1))
	}
	return entries, nil
}

func newEntry(n tree.Node, path []string, depth int) Entry {
	e := Entry{Kind: n.Kind(), Name: n.Name(), Path: path, Depth: depth}
	if sn, ok := n.(*tree.Snippet); ok {
		e.Preview = sn.Body.PlainText()
	}
	return e
}

// Expand runs the macro pipeline over the named snippet as if it were
// inserted on the page at url. rich selects the HTML source.
func (a *SnipApp) Expand(ctx context.Context, name, url string, rich bool) (string, error) {
	if err := a.read(); err != nil {
		return "", err
	}
	sn := a.library.Snippet(name)
	if sn == nil {
		return "", fmt.Errorf("snippet %q: %w", name, tree.ErrNotFound)
	}
	return a.expander.Expand(ctx, macro.Input{
		Text: sn.Body.Source(rich),
		Name: sn.Name(),
		URL:  url,
		Rich: rich,
	}), nil
}

// Copy writes text to the clipboard.
func (a *SnipApp) Copy(text string) error {
	return a.clipboard.Write(text)
}

// History returns the most recent operations.
func (a *SnipApp) History(limit int) ([]*model.Operation, error) {
	return a.db.ListOperations(limit)
}

// Saves returns the most recent saves.
func (a *SnipApp) Saves(limit int) ([]*model.Save, error) {
	return a.db.ListSaves(limit)
}

// BackupDatabase writes a snapshot of the history database to path.
func (a *SnipApp) BackupDatabase(path string) error {
	return a.db.BackupTo(path)
}

// EngineConfig builds the engine settings from config.
func (a *SnipApp) EngineConfig() (engine.Config, error) {
	return NewEngineConfig(a.cfg)
}

// NewEngineConfig converts the [engine] and [suggest] sections into an
// engine.Config.
func NewEngineConfig(cfg *config.Config) (engine.Config, error) {
	ec := engine.DefaultConfig()

	hk, err := engine.ParseHotkey(cfg.Engine.Hotkey)
	if err != nil {
		return engine.Config{}, err
	}
	ec.Hotkey = hk

	ec.Matcher = matcher.Options{
		Window:             matcher.DefaultWindow,
		Delimiters:         matcher.DefaultDelimiters,
		MatchDelimitedWord: cfg.Engine.DelimitedWord(),
		PreferLongest:      cfg.Engine.PreferLongest,
	}
	if cfg.Engine.Delimiters != "" {
		ec.Matcher.Delimiters = cfg.Engine.Delimiters
	}

	if ec.PlaceholderPolicy, err = placeholder.ParsePolicy(cfg.Engine.PlaceholderPolicy); err != nil {
		return engine.Config{}, err
	}

	ec.SuggestEnabled = cfg.Suggest.IsEnabled()
	ec.Suggest = suggest.Options{
		Trigger:    cfg.Suggest.Trigger,
		Fuzzy:      cfg.Suggest.Fuzzy,
		MaxResults: cfg.Suggest.MaxResults,
	}
	if cfg.Suggest.IdleTimeout != "" {
		d, err := time.ParseDuration(cfg.Suggest.IdleTimeout)
		if err != nil {
			return engine.Config{}, fmt.Errorf("suggest idle_timeout: %w", err)
		}
		ec.Suggest.IdleTimeout = d
	}

	if ec.AutoPairs, err = cfg.Engine.AutoPairs(); err != nil {
		return engine.Config{}, err
	}

	patterns := append([]string(nil), cfg.Engine.BlockedSites...)
	if cfg.Engine.BlocklistFile != "" {
		more, err := site.ParseBlocklistFile(cfg.Engine.BlocklistFile)
		if err != nil {
			return engine.Config{}, err
		}
		patterns = append(patterns, more...)
	}
	ec.Blocklist = site.NewBlocklist(patterns)

	return ec, nil
}

// Save writes pending library changes.
func (a *SnipApp) Save() error {
	if !a.mutated {
		return nil
	}
	if _, err := a.library.Save(); err != nil {
		a.op.Fail()
		return err
	}
	a.mutated = false
	return nil
}

// MarkMutated records a change made directly through Library, for
// example by the bridge, so Close saves it.
func (a *SnipApp) MarkMutated(parameters string) error {
	if err := a.persistOperation(parameters); err != nil {
		return err
	}
	a.mutated = true
	return nil
}

// Close saves pending changes, finalizes the operation and closes all
// resources.
func (a *SnipApp) Close() error {
	var errs []error

	if err := a.Save(); err != nil {
		errs = append(errs, fmt.Errorf("saving snippets: %w", err))
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if len(errs) > 0 {
		a.logger.Error("close failed", "operation", a.op.Operation, "error", errors.Join(errs...))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// DescribeKind returns the display label for an entry kind.
func DescribeKind(k tree.Kind) string {
	if k == tree.KindFolder {
		return "folder"
	}
	return "snippet"
}

// JoinPath renders a folder path for display.
func JoinPath(path []string) string {
	return strings.Join(path, "/")
}
