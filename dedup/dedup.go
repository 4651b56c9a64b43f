// Package dedup decides whether an email's content hash has already been
// published, so replayed messages are skipped.
package dedup

import (
	"context"
	"strings"

	"github.com/atx-oem/sesdrop/storage"
)

// Tracker answers whether a content hash was processed before and records a
// hash after a successful publish.
type Tracker interface {
	// AlreadyProcessed reports whether hash was seen before. The returned
	// string names the evidence (an object key) when it was.
	AlreadyProcessed(ctx context.Context, hash string) (bool, string, error)
	// MarkProcessed records that hash was published under the given folder.
	MarkProcessed(ctx context.Context, hash, folder string) error
}

// shortHash is the 8-hex-character dedup token embedded in published folder
// names.
func shortHash(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}

// ListingTracker reuses the published folder naming convention as the dedup
// index: a hash has been seen iff its short form appears as a substring of
// any key under the write prefix. Cheap and index-free, with a small
// false-positive probability per unrelated key (1 in 16^8).
type ListingTracker struct {
	Store  storage.Client
	Bucket string
	Prefix string
}

func (t *ListingTracker) AlreadyProcessed(ctx context.Context, hash string) (bool, string, error) {
	short := shortHash(hash)

	objects, err := t.Store.List(ctx, t.Bucket, t.Prefix)
	if err != nil {
		return false, "", err
	}
	for _, obj := range objects {
		if strings.Contains(obj.Key, short) {
			return true, obj.Key, nil
		}
	}
	return false, "", nil
}

// MarkProcessed is a no-op: publishing the folder is the marker.
func (t *ListingTracker) MarkProcessed(ctx context.Context, hash, folder string) error {
	return nil
}
