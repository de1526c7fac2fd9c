package port

import (
	"context"
	"io"
	"time"
)

// ArchivedObject describes a stored report.
type ArchivedObject struct {
	Key      string
	Location string
	ETag     string
}

// ReportArchive stores generated reports in object storage. Keys are relative to the
// archive's configured bucket and prefix.
type ReportArchive interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (*ArchivedObject, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
