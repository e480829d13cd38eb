// Package filewatch ties lifetimes of contexts to files.
package filewatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrModified is the cause of contexts cancelled by UntilModifyContext.
var ErrModified = errors.New("watched file is modified")

// UntilModifyContext returns a context that is canceled
// when one of files is modified (= written, created, removed, or renamed).
//
// Changes of permissions only are ignored.
//
// # Returns
//
// - context.Context: context cancelled on modification. context.Cause of it wraps ErrModified.
//
// - func(): cancel function.
//
// - error: error caused when it fails to start watching files.
// If error is not nil, both of the the context and the cancel function are nil.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("cannot watch %s: %w", p, err)
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching files is broken: %w", err))
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				cancel(fmt.Errorf("%w: %s (%s)", ErrModified, event.Name, event.Op))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
