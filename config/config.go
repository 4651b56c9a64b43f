package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/atx-oem/sesdrop/verify"
)

// Dedup mode selects how previously processed emails are detected.
const (
	DedupListing  = "listing"
	DedupManifest = "manifest"
)

const (
	DefaultBucket      = "emergency-mgmt-recd-data"
	DefaultReadPrefix  = "emails-received/"
	DefaultWritePrefix = "attachments/"
)

// Config captures everything a pipeline run needs. Defaults mirror the
// deployed constants; a TOML file and CLI flags may override them.
type Config struct {
	Bucket      string        `toml:"bucket"`
	ReadPrefix  string        `toml:"read_prefix"`
	WritePrefix string        `toml:"write_prefix"`
	DedupMode   string        `toml:"dedup_mode"`
	Rules       []verify.Rule `toml:"rules"`
	LogLevel    string        `toml:"log_level"`
	LogDir      string        `toml:"log_dir"`
	DryRun      bool          `toml:"-"`
	KeepStaging bool          `toml:"-"`
}

// Default returns the deployed configuration: the production bucket and
// prefixes plus the standard provenance gate.
func Default() Config {
	return Config{
		Bucket:      DefaultBucket,
		ReadPrefix:  DefaultReadPrefix,
		WritePrefix: DefaultWritePrefix,
		DedupMode:   DedupListing,
		Rules:       verify.DefaultRules(),
		LogLevel:    "info",
	}
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", "", "Path to a TOML config file")
	flags.String("bucket", DefaultBucket, "Object storage bucket")
	flags.String("read-prefix", DefaultReadPrefix, "Prefix holding received email objects")
	flags.String("write-prefix", DefaultWritePrefix, "Prefix attachments are published under")
	flags.String("dedup-mode", DedupListing, "Duplicate detection: listing or manifest")
	flags.Bool("dry-run", false, "Run the pipeline without writing to storage")
	flags.Bool("keep-staging", false, "Keep the temporary staging directory for inspection")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (stdout only when empty)")
}

// LoadConfig layers defaults, the optional TOML file, and any flags the user
// set explicitly, then validates the result.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	cfg := Default()

	configPath, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}
	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	if flags.Changed("bucket") {
		if cfg.Bucket, err = flags.GetString("bucket"); err != nil {
			return Config{}, err
		}
	}
	if flags.Changed("read-prefix") {
		if cfg.ReadPrefix, err = flags.GetString("read-prefix"); err != nil {
			return Config{}, err
		}
	}
	if flags.Changed("write-prefix") {
		if cfg.WritePrefix, err = flags.GetString("write-prefix"); err != nil {
			return Config{}, err
		}
	}
	if flags.Changed("dedup-mode") {
		if cfg.DedupMode, err = flags.GetString("dedup-mode"); err != nil {
			return Config{}, err
		}
	}
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
			return Config{}, err
		}
	}
	if flags.Changed("log-dir") {
		if cfg.LogDir, err = flags.GetString("log-dir"); err != nil {
			return Config{}, err
		}
	}
	if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
		return Config{}, err
	}
	if cfg.KeepStaging, err = flags.GetBool("keep-staging"); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile layers a TOML file over the defaults without consulting CLI
// flags. Used by subcommands that only need the file-based settings.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// A file that declares rules replaces the default gate entirely.
	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.Bucket != "" {
		cfg.Bucket = file.Bucket
	}
	if file.ReadPrefix != "" {
		cfg.ReadPrefix = file.ReadPrefix
	}
	if file.WritePrefix != "" {
		cfg.WritePrefix = file.WritePrefix
	}
	if file.DedupMode != "" {
		cfg.DedupMode = file.DedupMode
	}
	if len(file.Rules) > 0 {
		cfg.Rules = file.Rules
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogDir != "" {
		cfg.LogDir = file.LogDir
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if cfg.ReadPrefix == "" || !strings.HasSuffix(cfg.ReadPrefix, "/") {
		return fmt.Errorf("read prefix must be non-empty and end with /")
	}
	if cfg.WritePrefix == "" || !strings.HasSuffix(cfg.WritePrefix, "/") {
		return fmt.Errorf("write prefix must be non-empty and end with /")
	}

	switch cfg.DedupMode {
	case DedupListing, DedupManifest:
	default:
		return fmt.Errorf("invalid dedup mode: %s", cfg.DedupMode)
	}

	for _, rule := range cfg.Rules {
		if rule.Header == "" || rule.Want == "" {
			return fmt.Errorf("rule with empty header or contains value")
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	return nil
}
