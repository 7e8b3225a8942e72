package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default values applied by New.
const (
	DefaultAPIBaseURL       = "https://discord.com/api/v10"
	DefaultMarkerRole       = "Member"
	DefaultChunkSize        = 100
	DefaultRateLimit        = 5 * time.Second
	DefaultProgressInterval = 5 * time.Second
	DefaultKickReason       = "Server cleanup - Did not fill out onboarding survey"
	DefaultNoticeTitle      = "You have been kicked from the server."
	DefaultNoticeBody       = "You were kicked from the server since you did not fill out the " +
		"onboarding survey fully. You are free to rejoin the server at your earliest convenience."
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	dirName        = ".guildsweep"
	configFileName = "config.yaml"
)

// Config is the full guildsweep configuration.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DiscordConfig holds the API connection settings.
type DiscordConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	Token      string `yaml:"token,omitempty"`
	// TokenFile points at a file holding the bot token, e.g. a docker secret.
	TokenFile string `yaml:"token_file,omitempty"`
	GuildID   string `yaml:"guild_id"`
}

// CleanupConfig controls the member cleanup batch.
type CleanupConfig struct {
	MarkerRole       string        `yaml:"marker_role"`
	ChunkSize        int           `yaml:"chunk_size"`
	RateLimit        time.Duration `yaml:"rate_limit_interval"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	KickReason       string        `yaml:"kick_reason"`
	NoticeTitle      string        `yaml:"notice_title"`
	NoticeBody       string        `yaml:"notice_body"`
	InviteCode       string        `yaml:"invite_code,omitempty"`
	IncludeBots      bool          `yaml:"include_bots"`
	DryRun           bool          `yaml:"dry_run"`
}

// NoticeMessage returns the notice body with the invite link appended when configured.
func (c CleanupConfig) NoticeMessage() string {
	if c.InviteCode == "" {
		return c.NoticeBody
	}
	return fmt.Sprintf("%s (https://discord.gg/%s)", strings.TrimRight(c.NoticeBody, ". "), c.InviteCode)
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile is a node_exporter textfile collector path; empty disables export.
	Textfile string `yaml:"textfile,omitempty"`
}

// New returns a Config populated with defaults.
func New() *Config {
	dir := DefaultDir()
	return &Config{
		Discord: DiscordConfig{
			APIBaseURL: DefaultAPIBaseURL,
		},
		Cleanup: CleanupConfig{
			MarkerRole:       DefaultMarkerRole,
			ChunkSize:        DefaultChunkSize,
			RateLimit:        DefaultRateLimit,
			ProgressInterval: DefaultProgressInterval,
			KickReason:       DefaultKickReason,
			NoticeTitle:      DefaultNoticeTitle,
			NoticeBody:       DefaultNoticeBody,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			File:   filepath.Join(dir, "guildsweep.log"),
		},
		History: HistoryConfig{
			Path: filepath.Join(dir, "history.db"),
		},
	}
}

// DefaultDir returns ~/.guildsweep, or ./.guildsweep if the home directory
// cannot be determined.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), configFileName)
}

// Load builds a Config from defaults, the YAML file at path and the process
// environment. A missing file is not an error. An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := New()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if mergeErr := ShallowMergeYAML(cfg, path); mergeErr != nil {
			return nil, mergeErr
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking config file %s: %w", path, err)
	}

	cfg.ApplyEnv(lookup)
	return cfg, nil
}

// ApplyEnv applies GUILDSWEEP_* environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("GUILDSWEEP_TOKEN"); ok && v != "" {
		c.Discord.Token = v
	}
	if v, ok := lookup("GUILDSWEEP_TOKEN_FILE"); ok && v != "" {
		c.Discord.TokenFile = v
	}
	if v, ok := lookup("GUILDSWEEP_GUILD_ID"); ok && v != "" {
		c.Discord.GuildID = v
	}
	if v, ok := lookup("GUILDSWEEP_API_BASE_URL"); ok && v != "" {
		c.Discord.APIBaseURL = v
	}
	if v, ok := lookup("GUILDSWEEP_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("GUILDSWEEP_LOG_FORMAT"); ok && v != "" {
		c.Logging.Format = v
	}
}

// ResolveToken returns the bot token, reading TokenFile when Token is unset.
// Surrounding whitespace in the file is trimmed.
func (c *Config) ResolveToken() (string, error) {
	if c.Discord.Token != "" {
		return c.Discord.Token, nil
	}
	if c.Discord.TokenFile == "" {
		return "", fmt.Errorf("%w: discord.token or discord.token_file is required", ErrInvalidConfig)
	}

	data, err := os.ReadFile(c.Discord.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", c.Discord.TokenFile, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: token file %s is empty", ErrInvalidConfig, c.Discord.TokenFile)
	}
	return token, nil
}

// Validate checks the settings needed to run a cleanup.
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.APIBaseURL == "" {
		errs = append(errs, errors.New("discord.api_base_url is required"))
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id is required"))
	}
	if c.Discord.Token == "" && c.Discord.TokenFile == "" {
		errs = append(errs, errors.New("discord.token or discord.token_file is required"))
	}
	if c.Cleanup.MarkerRole == "" {
		errs = append(errs, errors.New("cleanup.marker_role is required"))
	}
	if c.Cleanup.ChunkSize < 1 || c.Cleanup.ChunkSize > 1000 {
		errs = append(errs, fmt.Errorf("cleanup.chunk_size must be between 1 and 1000, got %d", c.Cleanup.ChunkSize))
	}
	if c.Cleanup.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("cleanup.rate_limit_interval must be >= 0, got %s", c.Cleanup.RateLimit))
	}
	if c.Cleanup.ProgressInterval < 0 {
		errs = append(errs, fmt.Errorf("cleanup.progress_interval must be >= 0, got %s", c.Cleanup.ProgressInterval))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
