// Package inbox locates and fetches the most recently received email object
// from the bucket.
package inbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/atx-oem/sesdrop/model"
	"github.com/atx-oem/sesdrop/storage"
)

var (
	// ErrNoObjects means the read prefix holds nothing to process.
	ErrNoObjects = errors.New("no objects under prefix")
	// ErrNotText means the fetched object is not valid UTF-8 and cannot be
	// parsed as an email dump.
	ErrNotText = errors.New("object content is not valid UTF-8")
)

// FindLatest returns the object under prefix with the maximum last-modified
// timestamp. When several objects share the maximum timestamp the first one
// encountered in listing order wins.
func FindLatest(ctx context.Context, store storage.Client, bucket, prefix string) (model.StorageObject, error) {
	objects, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return model.StorageObject{}, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	if len(objects) == 0 {
		return model.StorageObject{}, fmt.Errorf("%s/%s: %w", bucket, prefix, ErrNoObjects)
	}

	latest := objects[0]
	for _, obj := range objects[1:] {
		if obj.LastModified.After(latest.LastModified) {
			latest = obj
		}
	}
	return latest, nil
}

// Fetch downloads the object and returns it as an Email. The SHA-256 digest
// is computed over the raw bytes before decoding so the fingerprint does not
// depend on text handling.
func Fetch(ctx context.Context, store storage.Client, bucket, key string) (model.Email, error) {
	raw, err := store.Get(ctx, bucket, key)
	if err != nil {
		return model.Email{}, fmt.Errorf("fetch %s/%s: %w", bucket, key, err)
	}

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	if !utf8.Valid(raw) {
		return model.Email{}, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotText)
	}

	return model.Email{
		Key:     key,
		Content: string(raw),
		Hash:    hash,
		Size:    int64(len(raw)),
	}, nil
}
