package port

import (
	"context"

	"github.com/google/uuid"
)

// RunCache maps batch fingerprints to stored runs and serializes identical submissions.
type RunCache interface {
	Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error)
	Set(ctx context.Context, fingerprint string, runID uuid.UUID) error
	Invalidate(ctx context.Context, fingerprint string) error
	// Lock takes the fingerprint lock. It returns domain.ErrRunInProgress when another
	// submission holds it. The returned func releases the lock.
	Lock(ctx context.Context, fingerprint string) (func(context.Context) error, error)
}
