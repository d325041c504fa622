package maxlines

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

func init() {
	// The examples import driver/memory, which registers itself as "memory",
	// so tests that need a testFS go through "local".
	RegisterDriver("local", newTestDriver)
}

func newTestDriver(cfg *Config) (FileSystem, error) {
	return newTestFS(), nil
}

// testFS is an in-memory FileSystem whose reads can be delayed or failed
// per path. Directories are implied by file paths.
type testFS struct {
	mu       sync.Mutex
	files    map[string]string
	dirs     map[string]bool
	delays   map[string]time.Duration
	failures map[string]error
	listErr  error

	// observed read behaviour
	reads      map[string]int
	readCtxErr map[string]error
	readDone   chan string
}

func newTestFS() *testFS {
	return &testFS{
		files:      make(map[string]string),
		dirs:       make(map[string]bool),
		delays:     make(map[string]time.Duration),
		failures:   make(map[string]error),
		reads:      make(map[string]int),
		readCtxErr: make(map[string]error),
		readDone:   make(chan string, 64),
	}
}

func (fs *testFS) withFile(p, content string) *testFS {
	fs.files[p] = content
	return fs
}

func (fs *testFS) withDir(dir string) *testFS {
	fs.dirs[dir] = true
	return fs
}

func (fs *testFS) withDelay(p string, d time.Duration) *testFS {
	fs.delays[p] = d
	return fs
}

func (fs *testFS) withFailure(p string, err error) *testFS {
	fs.failures[p] = err
	return fs
}

func (fs *testFS) totalReads() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, c := range fs.reads {
		n += c
	}
	return n
}

func (fs *testFS) ReadAll(ctx context.Context, p string) ([]byte, error) {
	fs.mu.Lock()
	fs.reads[p]++
	delay := fs.delays[p]
	failure := fs.failures[p]
	content, exists := fs.files[p]
	fs.mu.Unlock()

	defer func() {
		fs.mu.Lock()
		fs.readCtxErr[p] = ctx.Err()
		fs.mu.Unlock()
		select {
		case fs.readDone <- p:
		default:
		}
	}()

	if delay > 0 {
		// Deliberately ignores ctx so stragglers run to completion
		time.Sleep(delay)
	}
	if failure != nil {
		return nil, failure
	}
	if !exists {
		return nil, &PathError{Op: "read", Path: p, Err: ErrNotExist}
	}
	return []byte(content), nil
}

func (fs *testFS) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	data, err := fs.ReadAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (fs *testFS) Stat(ctx context.Context, p string) (*FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	content, exists := fs.files[p]
	if !exists {
		return nil, &PathError{Op: "stat", Path: p, Err: ErrNotExist}
	}
	return &FileInfo{Name: path.Base(p), Path: p, Size: int64(len(content))}, nil
}

func (fs *testFS) ListContents(ctx context.Context, dir string, recursive bool) ([]FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.listErr != nil {
		return nil, fs.listErr
	}

	prefix := strings.TrimSuffix(dir, "/") + "/"
	isRoot := dir == "" || dir == "."
	found := isRoot || fs.dirs[dir]
	seen := make(map[string]bool)
	entries := []FileInfo{}
	for p := range fs.files {
		rel := p
		if !isRoot {
			if !strings.HasPrefix(p, prefix) {
				continue
			}
			found = true
			rel = strings.TrimPrefix(p, prefix)
		}
		name, _, nested := strings.Cut(rel, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, FileInfo{Name: name, Path: path.Join(dir, name), IsDir: nested})
	}
	if !found {
		return nil, &PathError{Op: "listcontents", Path: dir, Err: ErrNotExist}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (fs *testFS) Write(ctx context.Context, p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[p] = string(data)
	return nil
}

func (fs *testFS) Delete(ctx context.Context, p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.files[p]; !exists {
		return &PathError{Op: "delete", Path: p, Err: ErrNotExist}
	}
	delete(fs.files, p)
	return nil
}

func (fs *testFS) CreateDir(ctx context.Context, p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[p] = true
	return nil
}
