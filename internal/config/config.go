package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override secrets from the config file.
const (
	EnvDatabaseDSN   = "WELL_DATABASE_DSN"
	EnvAIAPIKey      = "WELL_AI_API_KEY"
	EnvTelegramToken = "WELL_TELEGRAM_TOKEN"
	EnvS3SecretKey   = "WELL_S3_SECRET_ACCESS_KEY"
)

// Config represents the main configuration for well.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Timezone   string           `toml:"timezone"` // IANA name; calendar days for aggregation
	Database   DatabaseConfig   `toml:"database"`
	Cache      CacheConfig      `toml:"cache"`
	AI         AIConfig         `toml:"ai"`
	Server     ServerConfig     `toml:"server"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Digest     DigestConfig     `toml:"digest"`
}

// Duration is a time.Duration written as a Go duration string ("10m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DatabaseConfig represents configuration for the ledger database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "postgres"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	DSN     string `toml:"dsn,omitempty"`      // only used for type=postgres
}

// CacheConfig selects where insight payloads are cached.
type CacheConfig struct {
	Type string   `toml:"type"` // "memory" or "database"
	TTL  Duration `toml:"ttl"`
}

// AIConfig configures the text-completion provider.
type AIConfig struct {
	Type    string   `toml:"type"` // "openai" or "none"
	BaseURL string   `toml:"base_url,omitempty"`
	APIKey  string   `toml:"api_key,omitempty"`
	Model   string   `toml:"model,omitempty"`
	Timeout Duration `toml:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr string        `toml:"listen_addr"`
	Tokens     []TokenConfig `toml:"tokens"`
}

// TokenConfig maps a bcrypt-hashed bearer token to the user it authenticates.
type TokenConfig struct {
	UserID    string `toml:"user_id"`
	TokenHash string `toml:"token_hash"`
}

// VaultConfig represents configuration for a snapshot vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services; enables path-style addressing

	// Static credentials; the default AWS credential chain is used when empty.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DigestConfig configures the scheduled daily digest.
type DigestConfig struct {
	Schedule       string   `toml:"schedule"` // cron spec, evaluated in Timezone
	Users          []string `toml:"users"`
	Notifier       string   `toml:"notifier"` // "log" or "telegram"
	TelegramToken  string   `toml:"telegram_token,omitempty"`
	TelegramChatID int64    `toml:"telegram_chat_id,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Timezone: "UTC",
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Cache:    CacheConfig{Type: "database", TTL: Duration{10 * time.Minute}},
		AI:       AIConfig{Type: "none", Timeout: Duration{20 * time.Second}},
		Server:   ServerConfig{ListenAddr: ":8080"},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "well.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "well.key"),
		},
		Digest: DigestConfig{Schedule: "0 8 * * *", Notifier: "log"},
	}
}

// Location resolves Timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ApplyEnv overrides secrets with values from the environment when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvAIAPIKey); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv(EnvTelegramToken); v != "" {
		c.Digest.TelegramToken = v
	}
	if v := os.Getenv(EnvS3SecretKey); v != "" {
		for i := range c.Vaults {
			if c.Vaults[i].Type == "s3" {
				c.Vaults[i].S3SecretAccessKey = v
			}
		}
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and applies
// environment overrides.
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
	cfg.ApplyEnv()
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold API keys and token hashes.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
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
