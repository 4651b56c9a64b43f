package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(newTestCommand())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Bucket != DefaultBucket {
		t.Errorf("bucket = %q, want %q", cfg.Bucket, DefaultBucket)
	}
	if cfg.ReadPrefix != DefaultReadPrefix {
		t.Errorf("read prefix = %q, want %q", cfg.ReadPrefix, DefaultReadPrefix)
	}
	if cfg.WritePrefix != DefaultWritePrefix {
		t.Errorf("write prefix = %q, want %q", cfg.WritePrefix, DefaultWritePrefix)
	}
	if cfg.DedupMode != DedupListing {
		t.Errorf("dedup mode = %q, want listing", cfg.DedupMode)
	}
	if len(cfg.Rules) != 4 {
		t.Errorf("rules = %d, want the 4 default provenance rules", len(cfg.Rules))
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	cmd := newTestCommand()
	for flag, value := range map[string]string{
		"bucket":      "other-bucket",
		"read-prefix": "inbound/",
		"dedup-mode":  "manifest",
		"log-level":   "debug",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("set %s: %v", flag, err)
		}
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Bucket != "other-bucket" || cfg.ReadPrefix != "inbound/" {
		t.Errorf("flag overrides not applied: %+v", cfg)
	}
	if cfg.DedupMode != DedupManifest {
		t.Errorf("dedup mode = %q, want manifest", cfg.DedupMode)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadConfig_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sesdrop.toml")
	content := `
bucket = "file-bucket"
write_prefix = "published/"

[[rules]]
header = "X-Custom-Gate"
contains = "ok"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newTestCommand()
	if err := cmd.Flags().Set("config", path); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Bucket != "file-bucket" {
		t.Errorf("bucket = %q, want file-bucket", cfg.Bucket)
	}
	if cfg.WritePrefix != "published/" {
		t.Errorf("write prefix = %q, want published/", cfg.WritePrefix)
	}
	if cfg.ReadPrefix != DefaultReadPrefix {
		t.Errorf("read prefix = %q, want default preserved", cfg.ReadPrefix)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Header != "X-Custom-Gate" {
		t.Errorf("rules = %+v, want the file's rule set to replace the defaults", cfg.Rules)
	}
}

func TestLoadConfig_FlagBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sesdrop.toml")
	if err := os.WriteFile(path, []byte(`bucket = "file-bucket"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newTestCommand()
	if err := cmd.Flags().Set("config", path); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("bucket", "flag-bucket"); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Bucket != "flag-bucket" {
		t.Errorf("bucket = %q, want the flag to win over the file", cfg.Bucket)
	}
}

func TestLoadConfig_InvalidDedupMode(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.Flags().Set("dedup-mode", "bloom"); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(cmd); err == nil {
		t.Error("LoadConfig() = nil, want error for unknown dedup mode")
	}
}

func TestLoadConfig_PrefixMustEndWithSlash(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.Flags().Set("read-prefix", "emails-received"); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(cmd); err == nil {
		t.Error("LoadConfig() = nil, want error for prefix without trailing slash")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sesdrop.toml")
	if err := os.WriteFile(path, []byte(`dedup_mode = "manifest"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.DedupMode != DedupManifest {
		t.Errorf("dedup mode = %q, want manifest", cfg.DedupMode)
	}
	if cfg.Bucket != DefaultBucket {
		t.Errorf("bucket = %q, want default", cfg.Bucket)
	}
}
