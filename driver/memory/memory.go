package memory

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/maxlines"
	"github.com/gobwas/glob"
)

// memoryFile represents a file stored in memory
type memoryFile struct {
	content []byte
	modTime time.Time
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	filter glob.Glob
	token  *maxlines.CallbackChangeToken
}

// Adapter provides an in-memory implementation of maxlines.FileSystem.
// Useful for tests and for feeding the finder generated content.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]time.Time
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size

	watchMu sync.Mutex
	watches []*watchEntry
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory filesystem adapter
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}

	return &Adapter{
		files:   make(map[string]*memoryFile),
		dirs:    map[string]time.Time{"": time.Now()},
		maxSize: maxSize,
	}
}

// Write implements maxlines.FileWriter
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !isValidPath(p) {
		return &maxlines.PathError{Op: "write", Path: p, Err: maxlines.ErrNotAllowed}
	}
	p = normalizePath(p)
	if p == "" {
		return &maxlines.PathError{Op: "write", Path: p, Err: maxlines.ErrIsDir}
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return &maxlines.PathError{Op: "write", Path: p, Err: err}
	}

	a.mu.Lock()
	if _, isDir := a.dirs[p]; isDir {
		a.mu.Unlock()
		return &maxlines.PathError{Op: "write", Path: p, Err: maxlines.ErrIsDir}
	}

	newSize := a.size + int64(len(data))
	if existing, exists := a.files[p]; exists {
		newSize -= int64(len(existing.content))
	}
	if a.maxSize > 0 && newSize > a.maxSize {
		a.mu.Unlock()
		return &maxlines.PathError{Op: "write", Path: p, Err: maxlines.ErrInvalidSize}
	}

	a.ensureParentDirs(p)
	a.files[p] = &memoryFile{content: data, modTime: time.Now()}
	a.size = newSize
	a.mu.Unlock()

	a.notifyWatchers(p)
	return nil
}

// Read implements maxlines.FileReader
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	data, err := a.ReadAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadAll implements maxlines.ContentReader
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[p]
	if !exists {
		if _, isDir := a.dirs[p]; isDir {
			return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrIsDir}
		}
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrNotExist}
	}

	// Copy so callers cannot modify the stored content
	return bytes.Clone(file.content), nil
}

// Delete implements maxlines.FileWriter
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = normalizePath(p)

	a.mu.Lock()
	file, exists := a.files[p]
	if !exists {
		a.mu.Unlock()
		return &maxlines.PathError{Op: "delete", Path: p, Err: maxlines.ErrNotExist}
	}
	a.size -= int64(len(file.content))
	delete(a.files, p)
	a.mu.Unlock()

	a.notifyWatchers(p)
	return nil
}

// CreateDir implements maxlines.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !isValidPath(p) {
		return &maxlines.PathError{Op: "createdir", Path: p, Err: maxlines.ErrNotAllowed}
	}
	p = normalizePath(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isFile := a.files[p]; isFile {
		return &maxlines.PathError{Op: "createdir", Path: p, Err: maxlines.ErrExist}
	}
	if _, exists := a.dirs[p]; !exists {
		a.dirs[p] = time.Now()
	}
	a.ensureParentDirs(p)
	return nil
}

// Stat implements maxlines.FileReader
func (a *Adapter) Stat(ctx context.Context, p string) (*maxlines.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, exists := a.files[p]; exists {
		return &maxlines.FileInfo{
			Name:    path.Base(p),
			Path:    p,
			Size:    int64(len(file.content)),
			ModTime: file.modTime,
		}, nil
	}
	if modTime, exists := a.dirs[p]; exists {
		return &maxlines.FileInfo{
			Name:    path.Base(p),
			Path:    p,
			ModTime: modTime,
			IsDir:   true,
		}, nil
	}
	return nil, &maxlines.PathError{Op: "stat", Path: p, Err: maxlines.ErrNotExist}
}

// ListContents implements maxlines.DirectoryLister.
// Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]maxlines.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, exists := a.dirs[p]; !exists {
		if _, isFile := a.files[p]; isFile {
			return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotDir}
		}
		return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotExist}
	}

	// include reports whether child is listed under p
	include := func(child string) bool {
		if child == p || child == "" {
			return false
		}
		rel := child
		if p != "" {
			if !strings.HasPrefix(child, p+"/") {
				return false
			}
			rel = strings.TrimPrefix(child, p+"/")
		}
		return recursive || !strings.Contains(rel, "/")
	}

	entries := []maxlines.FileInfo{}
	for filePath, file := range a.files {
		if include(filePath) {
			entries = append(entries, maxlines.FileInfo{
				Name:    path.Base(filePath),
				Path:    filePath,
				Size:    int64(len(file.content)),
				ModTime: file.modTime,
			})
		}
	}
	for dirPath, modTime := range a.dirs {
		if include(dirPath) {
			entries = append(entries, maxlines.FileInfo{
				Name:    path.Base(dirPath),
				Path:    dirPath,
				ModTime: modTime,
				IsDir:   true,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries, nil
}

// Watch implements maxlines.CanWatch. The filter is a glob matched against
// normalized paths, with '/' as separator.
func (a *Adapter) Watch(ctx context.Context, filter string) (maxlines.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := glob.Compile(normalizePath(filter), '/')
	if err != nil {
		return nil, &maxlines.PathError{Op: "watch", Path: filter, Err: err}
	}

	token := maxlines.NewCallbackChangeToken()

	a.watchMu.Lock()
	a.watches = append(a.watches, &watchEntry{filter: g, token: token})
	a.watchMu.Unlock()

	// notifyWatchers drops fired tokens itself; only cancellation needs cleanup
	fired := make(chan struct{})
	token.RegisterChangeCallback(func() { close(fired) })

	go func() {
		select {
		case <-ctx.Done():
			a.removeWatch(token)
		case <-fired:
		}
	}()

	return token, nil
}

// Size returns the total number of bytes stored
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of stored files
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

func (a *Adapter) notifyWatchers(p string) {
	a.watchMu.Lock()
	var fired []*maxlines.CallbackChangeToken
	kept := a.watches[:0]
	for _, entry := range a.watches {
		if entry.filter.Match(p) {
			fired = append(fired, entry.token)
			continue
		}
		kept = append(kept, entry)
	}
	a.watches = kept
	a.watchMu.Unlock()

	// Tokens are single-use; fire outside the lock
	for _, token := range fired {
		token.SignalChange()
	}
}

func (a *Adapter) removeWatch(token *maxlines.CallbackChangeToken) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for i, entry := range a.watches {
		if entry.token == token {
			a.watches = append(a.watches[:i], a.watches[i+1:]...)
			return
		}
	}
}

// ensureParentDirs must be called with mu held
func (a *Adapter) ensureParentDirs(p string) {
	dir := path.Dir(p)
	for dir != "" && dir != "." && dir != "/" {
		if _, exists := a.dirs[dir]; !exists {
			a.dirs[dir] = time.Now()
		}
		dir = path.Dir(dir)
	}
}

func normalizePath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return p
}

// isValidPath rejects parent references before normalization hides them
func isValidPath(p string) bool {
	return !strings.Contains(p, "..")
}
