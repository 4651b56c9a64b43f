package dedup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atx-oem/sesdrop/storage"
)

// ManifestName is the manifest object's key relative to the write prefix.
const ManifestName = "manifest.jsonl"

type manifestRecord struct {
	Hash        string    `json:"hash"`
	Folder      string    `json:"folder"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ManifestTracker keys dedup on the full content hash via a JSONL manifest
// object in the bucket. Published folder names keep embedding the short hash,
// so buckets written in manifest mode remain readable by the listing tracker.
type ManifestTracker struct {
	Store  storage.Client
	Bucket string
	Prefix string

	// Clock supplies ProcessedAt timestamps; defaults to time.Now.
	Clock func() time.Time
}

func (t *ManifestTracker) key() string {
	return t.Prefix + ManifestName
}

func (t *ManifestTracker) load(ctx context.Context) ([]byte, error) {
	data, err := t.Store.Get(ctx, t.Bucket, t.key())
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return data, nil
}

func (t *ManifestTracker) AlreadyProcessed(ctx context.Context, hash string) (bool, string, error) {
	data, err := t.load(ctx)
	if err != nil {
		return false, "", err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var record manifestRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return false, "", fmt.Errorf("parse manifest line %d: %w", line, err)
		}
		if record.Hash == hash {
			return true, record.Folder, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, "", fmt.Errorf("read manifest: %w", err)
	}

	return false, "", nil
}

func (t *ManifestTracker) MarkProcessed(ctx context.Context, hash, folder string) error {
	data, err := t.load(ctx)
	if err != nil {
		return err
	}

	now := time.Now
	if t.Clock != nil {
		now = t.Clock
	}

	record := manifestRecord{Hash: hash, Folder: folder, ProcessedAt: now().UTC()}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode manifest record: %w", err)
	}

	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	data = append(data, line...)
	data = append(data, '\n')

	if err := t.Store.Put(ctx, t.Bucket, t.key(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
