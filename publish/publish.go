// Package publish uploads staged attachments into a timestamp+hash named
// folder and promotes the first tabular file to the well-known
// "most recent data" key.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atx-oem/sesdrop/storage"
)

// MostRecentBase is the key stem of the promoted tabular file, relative to
// the write prefix. Every existing object under this stem is deleted before a
// new promotion, so stale pointers with a different extension do not linger.
const MostRecentBase = "most_recent_data"

type Options struct {
	Bucket      string
	WritePrefix string
	DryRun      bool
}

type Publisher struct {
	store  storage.Client
	opts   Options
	logger *slog.Logger

	// now supplies the folder timestamp; defaults to time.Now.
	now func() time.Time
}

// Result records what a publish run wrote.
type Result struct {
	Folder   string
	Uploaded []string
	Promoted string
}

func New(store storage.Client, opts Options, logger *slog.Logger) (*Publisher, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is empty")
	}
	return &Publisher{store: store, opts: opts, logger: logger, now: time.Now}, nil
}

// WithClock overrides the folder timestamp source.
func (p *Publisher) WithClock(now func() time.Time) *Publisher {
	p.now = now
	return p
}

// FolderName builds the per-run folder: UTC timestamp plus the short content
// hash, unique per run under normal operation.
func (p *Publisher) FolderName(hash string) string {
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	return p.now().UTC().Format("20060102-150405") + "_UTC-" + short
}

// Publish promotes the alphabetically first .csv/.xlsx file in the staging
// root (if any) and then uploads every staged file, recursively, into the new
// folder. Uploads are fire-and-forget: the first failure aborts the run with
// no rollback.
func (p *Publisher) Publish(ctx context.Context, stagingDir, hash string) (*Result, error) {
	result := &Result{Folder: p.FolderName(hash)}

	promoted, err := p.promoteTabular(ctx, stagingDir)
	if err != nil {
		return result, err
	}
	result.Promoted = promoted

	err = filepath.WalkDir(stagingDir, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(stagingDir, filePath)
		if err != nil {
			return err
		}
		key := path.Join(p.opts.WritePrefix, result.Folder, filepath.ToSlash(rel))

		if err := p.upload(ctx, filePath, key); err != nil {
			return err
		}
		result.Uploaded = append(result.Uploaded, key)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("upload staged files: %w", err)
	}

	return result, nil
}

// promoteTabular picks the alphabetically first .csv or .xlsx file directly
// in the staging root, deletes every prior pointer object, and uploads the
// file under the fixed key. Returns the pointer key, or "" when the staging
// root holds no tabular file.
func (p *Publisher) promoteTabular(ctx context.Context, stagingDir string) (string, error) {
	csvFiles, err := filepath.Glob(filepath.Join(stagingDir, "*.csv"))
	if err != nil {
		return "", fmt.Errorf("glob csv: %w", err)
	}
	xlsxFiles, err := filepath.Glob(filepath.Join(stagingDir, "*.xlsx"))
	if err != nil {
		return "", fmt.Errorf("glob xlsx: %w", err)
	}

	dataFiles := append(csvFiles, xlsxFiles...)
	if len(dataFiles) == 0 {
		return "", nil
	}
	sort.Strings(dataFiles)

	dataFile := dataFiles[0]
	pointerStem := p.opts.WritePrefix + MostRecentBase
	pointerKey := pointerStem + strings.ToLower(filepath.Ext(dataFile))

	stale, err := p.store.List(ctx, p.opts.Bucket, pointerStem)
	if err != nil {
		return "", fmt.Errorf("list prior %s: %w", pointerStem, err)
	}
	for _, obj := range stale {
		if p.opts.DryRun {
			if p.logger != nil {
				p.logger.Info("dry-run: would delete stale pointer", "key", obj.Key)
			}
			continue
		}
		if err := p.store.Delete(ctx, p.opts.Bucket, obj.Key); err != nil {
			return "", fmt.Errorf("delete stale pointer %s: %w", obj.Key, err)
		}
	}

	if err := p.upload(ctx, dataFile, pointerKey); err != nil {
		return "", err
	}
	return pointerKey, nil
}

func (p *Publisher) upload(ctx context.Context, filePath, key string) error {
	if p.opts.DryRun {
		if p.logger != nil {
			p.logger.Info("dry-run: would upload", "file", filePath, "key", key)
		}
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}
	if err := p.store.Put(ctx, p.opts.Bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if p.logger != nil {
		p.logger.Debug("uploaded", "key", key, "bytes", len(data))
	}
	return nil
}
