package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied to zero values after decoding.
const (
	DefaultMaxItemSize   = 8192
	DefaultHotkey        = "shift+space"
	DefaultTrigger       = "."
	DefaultMaxResults    = 10
	DefaultNameMaxLength = 60
	DefaultBridgeAddr    = "127.0.0.1:7747"
)

// Config represents the main configuration for snip.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Store      StoreConfig      `toml:"store"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
	Engine     EngineConfig     `toml:"engine"`
	Suggest    SuggestConfig    `toml:"suggest"`
	Limits     LimitsConfig     `toml:"limits"`
	Bridge     BridgeConfig     `toml:"bridge"`
}

// StoreConfig represents configuration for the key-value store the snippet
// tree is persisted to.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type        string `toml:"type"`          // "memory", "filesystem", "sqlite" or "s3"; "sqlite" uses the [database] file
	MaxItemSize int    `toml:"max_item_size"` // per-value ceiling in bytes; defaults to 8192
	Format      string `toml:"format"`        // "json" (default) or "array"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// DatabaseConfig represents configuration for the SQLite database that keeps
// operation and save history, and the snippet values when the store type is
// "sqlite".
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair used to encrypt stored
// values.
type EncryptionConfig struct {
	Enabled        bool   `toml:"enabled"`
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// EngineConfig controls matching, expansion and placeholder navigation.
type EngineConfig struct {
	Hotkey             string   `toml:"hotkey"`
	Delimiters         string   `toml:"delimiters"`
	MatchDelimitedWord *bool    `toml:"match_delimited_word"`
	PreferLongest      bool     `toml:"prefer_longest"`
	PlaceholderPolicy  string   `toml:"placeholder_policy"` // "cycle" (default) or "terminate"
	BlockedSites       []string `toml:"blocked_sites"`
	BlocklistFile      string   `toml:"blocklist_file,omitempty"`
	// AutoInsert lists two-character pairs such as "()" whose closing
	// character is inserted with the opening one.
	AutoInsert []string `toml:"auto_insert"`
}

// DelimitedWord reports whether matches must start on a word boundary.
// Unset means true.
func (e EngineConfig) DelimitedWord() bool {
	return e.MatchDelimitedWord == nil || *e.MatchDelimitedWord
}

// AutoPairs parses AutoInsert into an opening -> closing map.
func (e EngineConfig) AutoPairs() (map[string]string, error) {
	if len(e.AutoInsert) == 0 {
		return nil, nil
	}
	pairs := make(map[string]string, len(e.AutoInsert))
	for _, p := range e.AutoInsert {
		r := []rune(p)
		if len(r) != 2 {
			return nil, fmt.Errorf("auto_insert pair %q must be exactly two characters", p)
		}
		pairs[string(r[0])] = string(r[1])
	}
	return pairs, nil
}

// SuggestConfig controls the trigger-character suggestion session.
type SuggestConfig struct {
	Enabled     *bool  `toml:"enabled"`
	Trigger     string `toml:"trigger"`
	Fuzzy       bool   `toml:"fuzzy"`
	MaxResults  int    `toml:"max_results"`
	IdleTimeout string `toml:"idle_timeout,omitempty"` // Go duration, e.g. "30s"; empty disables
}

// IsEnabled reports whether suggestions are on. Unset means true.
func (s SuggestConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// LimitsConfig bounds user input.
type LimitsConfig struct {
	NameMaxLength int `toml:"name_max_length"`
}

// BridgeConfig configures the local WebSocket bridge.
type BridgeConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// NewConfig creates a new Config rooted at baseDir with default paths and a
// filesystem store.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "store"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "snip.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "snip.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values that have a non-zero default.
func (c *Config) applyDefaults() {
	if c.Store.MaxItemSize == 0 {
		c.Store.MaxItemSize = DefaultMaxItemSize
	}
	if c.Database.Type == "" {
		if c.BaseDir != "" {
			c.Database = DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(c.BaseDir, "db")}
		} else {
			c.Database.Type = "memory"
		}
	}
	if c.Store.Format == "" {
		c.Store.Format = "json"
	}
	if c.Engine.Hotkey == "" {
		c.Engine.Hotkey = DefaultHotkey
	}
	if c.Suggest.Trigger == "" {
		c.Suggest.Trigger = DefaultTrigger
	}
	if c.Suggest.MaxResults == 0 {
		c.Suggest.MaxResults = DefaultMaxResults
	}
	if c.Limits.NameMaxLength == 0 {
		c.Limits.NameMaxLength = DefaultNameMaxLength
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = DefaultBridgeAddr
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
