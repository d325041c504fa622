package maxlines

import (
	"context"
	"sync"
	"sync/atomic"
)

// CallbackChangeToken is a ChangeToken that supports active callbacks.
// Used by drivers that have native file system events (local, memory).
type CallbackChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	callbacks []func()
}

// NewCallbackChangeToken creates a new ChangeToken that supports active callbacks.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

// RegisterChangeCallback registers callback. If the token has already
// changed, callback runs immediately.
func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	if t.changed.Load() {
		t.mu.Unlock()
		callback()
		return func() {}
	}
	t.callbacks = append(t.callbacks, callback)
	index := len(t.callbacks) - 1
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if index < len(t.callbacks) {
			// nil out to keep the other indexes stable
			t.callbacks[index] = nil
		}
	}
}

// SignalChange marks the token as changed and invokes all callbacks once.
// Drivers call this when they observe a matching event.
func (t *CallbackChangeToken) SignalChange() {
	t.mu.Lock()
	if t.changed.Swap(true) {
		t.mu.Unlock()
		return
	}
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

// NeverChangeToken is a ChangeToken that never changes.
// Drivers without change notifications (s3, zip) hand it out.
type NeverChangeToken struct{}

func (NeverChangeToken) HasChanged() bool {
	return false
}

func (NeverChangeToken) ActiveChangeCallbacks() bool {
	return false
}

func (NeverChangeToken) RegisterChangeCallback(callback func()) func() {
	return func() {}
}

// OnChange waits for a token from tokenProducer to fire, runs changeAction,
// and repeats with a fresh token until ctx is done. It returns ctx.Err() on
// cancellation, or the first error from tokenProducer.
//
// Example:
//
//	err := maxlines.OnChange(ctx,
//	    func() (maxlines.ChangeToken, error) {
//	        return fs.(maxlines.CanWatch).Watch(ctx, "notes/*")
//	    },
//	    func() {
//	        recompute()
//	    },
//	)
func OnChange(ctx context.Context, tokenProducer func() (ChangeToken, error), changeAction func()) error {
	for {
		token, err := tokenProducer()
		if err != nil {
			return err
		}

		fired := make(chan struct{})
		var once sync.Once
		unregister := token.RegisterChangeCallback(func() {
			once.Do(func() { close(fired) })
		})

		select {
		case <-ctx.Done():
			unregister()
			return ctx.Err()
		case <-fired:
			unregister()
			changeAction()
		}
	}
}
