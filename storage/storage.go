package storage

import (
	"context"
	"io"

	"github.com/atx-oem/sesdrop/model"
)

// Client is the narrow slice of object storage the pipeline needs. List must
// page through the full result set; Put overwrites silently.
type Client interface {
	List(ctx context.Context, bucket, prefix string) ([]model.StorageObject, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body io.Reader) error
	Delete(ctx context.Context, bucket, key string) error
}
