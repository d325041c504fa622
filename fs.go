package maxlines

import (
	"context"
	"io"
	"time"
)

// FileInfo represents file/directory metadata
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// ============================================================================
// Collaborator Interfaces (Interface Segregation)
// ============================================================================

// DirectoryLister lists the entries of a directory.
// Entries are returned in a stable order; drivers sort by name.
type DirectoryLister interface {
	// ListContents lists directory contents.
	// If recursive is true, includes all descendants.
	ListContents(ctx context.Context, path string, recursive bool) ([]FileInfo, error)
}

// ContentReader reads a whole file into memory.
type ContentReader interface {
	// ReadAll reads entire file into memory. Use for small files only.
	ReadAll(ctx context.Context, path string) ([]byte, error)
}

// FileReader provides read-only filesystem access.
// Use this type in function signatures to enforce read-only at compile time.
type FileReader interface {
	DirectoryLister
	ContentReader

	// Read returns a stream for reading file content.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns file/directory metadata.
	Stat(ctx context.Context, path string) (*FileInfo, error)
}

// FileWriter provides write filesystem operations.
type FileWriter interface {
	// Write writes content from reader to path, replacing any existing file.
	Write(ctx context.Context, path string, r io.Reader) error

	// Delete removes a file.
	Delete(ctx context.Context, path string) error

	// CreateDir creates a directory (and parents if needed).
	CreateDir(ctx context.Context, path string) error
}

// FileSystem provides full read-write filesystem access.
type FileSystem interface {
	FileReader
	FileWriter
}

// ============================================================================
// File Watching Interface (ChangeToken Pattern)
// ============================================================================

// ChangeToken represents a change notification token.
//
// Consumers can either:
// 1. Poll HasChanged() periodically
// 2. Register a callback via RegisterChangeCallback()
type ChangeToken interface {
	// HasChanged returns true if a change has occurred.
	// Once true, it remains true (tokens are single-use).
	HasChanged() bool

	// ActiveChangeCallbacks indicates if the token proactively raises callbacks.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers a callback to be invoked when change occurs.
	// Returns a function to unregister the callback.
	RegisterChangeCallback(callback func()) (unregister func())
}

// CanWatch indicates the filesystem supports file change notifications.
// Not all backends support watching - check with type assertion.
//
// Example:
//
//	if watcher, ok := fs.(CanWatch); ok {
//	    token, err := watcher.Watch(ctx, "notes/*")
//	    ...
//	}
type CanWatch interface {
	// Watch creates a change token for the specified filter pattern.
	// The token signals when any matching file is created, modified, or deleted.
	Watch(ctx context.Context, pattern string) (ChangeToken, error)
}
