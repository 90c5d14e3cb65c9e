package object

import (
	"context"
	"io"
)

// ObjectStore saves and retrieves uploaded grain images. Save namespaces the
// object under the owning user and returns the storage key later used by
// Open and by the public file route.
type ObjectStore interface {
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
