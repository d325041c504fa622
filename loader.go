package maxlines

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// LoadOption configures LoadAll.
type LoadOption func(*loadOptions)

type loadOptions struct {
	cancelOnFailure bool
}

// WithCancelOnFailure cancels the context seen by outstanding reads once one
// read has failed. Without it, outstanding reads run to completion and their
// results are dropped.
func WithCancelOnFailure() LoadOption {
	return func(o *loadOptions) {
		o.cancelOnFailure = true
	}
}

// LoadAll reads every path concurrently and returns the contents in input order.
//
// Each read owns one slot of the result, so the order of the returned slice
// matches paths no matter which read finishes first. The first failure that
// is observed is returned as soon as it happens; LoadAll does not wait for the
// remaining reads in that case.
func LoadAll(ctx context.Context, r ContentReader, paths []string, opts ...LoadOption) ([]string, error) {
	if len(paths) == 0 {
		return []string{}, nil
	}

	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &errgroup.Group{}
	readCtx := ctx
	if o.cancelOnFailure {
		g, readCtx = errgroup.WithContext(ctx)
	}

	contents := make([]string, len(paths))
	failed := make(chan error, 1)

	for i, p := range paths {
		g.Go(func() error {
			data, err := r.ReadAll(readCtx, p)
			if err != nil {
				select {
				case failed <- err:
				default:
				}
				return err
			}
			contents[i] = string(data)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-failed:
		return nil, err
	case err := <-done:
		if err != nil {
			// failed already holds the first error observed.
			return nil, <-failed
		}
		return contents, nil
	}
}
