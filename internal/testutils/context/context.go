package context

import (
	"context"
	"testing"
	"time"
)

// WithTest derives a context which is done 1 second before the test's deadline,
// leaving time to clean up databases and servers.
//
// The context is cancelled when the test finishes.
func WithTest(ctx context.Context, t *testing.T) context.Context {
	t.Helper()
	if deadline, ok := t.Deadline(); ok {
		dctx, cancel := context.WithDeadline(ctx, deadline.Add(-time.Second))
		t.Cleanup(cancel)
		return dctx
	}
	cctx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	return cctx
}
