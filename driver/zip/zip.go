package zip

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/gobeaver/maxlines"
)

// Adapter serves the contents of a ZIP archive as a read-only
// maxlines.FileSystem. The archive index is built once by Open and never
// changes, so concurrent reads need no locking.
type Adapter struct {
	path    string
	reader  *zip.ReadCloser
	entries map[string]*zipEntry
}

// zipEntry is a file or directory in the archive. Directories implied by
// nested file names have no file.
type zipEntry struct {
	file  *zip.File
	isDir bool
}

// Open opens an existing ZIP archive for reading
func Open(zipPath string) (*Adapter, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &maxlines.PathError{Op: "open", Path: zipPath, Err: maxlines.ErrNotExist}
		}
		return nil, &maxlines.PathError{Op: "open", Path: zipPath, Err: err}
	}

	a := &Adapter{
		path:    zipPath,
		reader:  reader,
		entries: map[string]*zipEntry{"": {isDir: true}},
	}

	for _, f := range reader.File {
		name := normalizePath(f.Name)
		if name == "" {
			continue
		}
		a.entries[name] = &zipEntry{file: f, isDir: f.FileInfo().IsDir()}
		a.ensureParentDirs(name)
	}

	return a, nil
}

// Path returns the archive path the adapter was opened with
func (a *Adapter) Path() string {
	return a.path
}

// Close releases the archive file
func (a *Adapter) Close() error {
	return a.reader.Close()
}

// Read implements maxlines.FileReader
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)
	entry, exists := a.entries[p]
	if !exists {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrNotExist}
	}
	if entry.isDir {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrIsDir}
	}

	rc, err := entry.file.Open()
	if err != nil {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: err}
	}
	return rc, nil
}

// ReadAll implements maxlines.ContentReader
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	rc, err := a.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &maxlines.PathError{Op: "read", Path: normalizePath(p), Err: err}
	}
	return data, nil
}

// Stat implements maxlines.FileReader
func (a *Adapter) Stat(ctx context.Context, p string) (*maxlines.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)
	entry, exists := a.entries[p]
	if !exists {
		return nil, &maxlines.PathError{Op: "stat", Path: p, Err: maxlines.ErrNotExist}
	}

	info := entry.info(p)
	return &info, nil
}

// ListContents implements maxlines.DirectoryLister. Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]maxlines.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p = normalizePath(p)
	dir, exists := a.entries[p]
	if !exists {
		return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotExist}
	}
	if !dir.isDir {
		return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotDir}
	}

	prefix := ""
	if p != "" {
		prefix = p + "/"
	}

	files := []maxlines.FileInfo{}
	for name, entry := range a.entries {
		if name == "" || !strings.HasPrefix(name, prefix) {
			continue
		}
		if !recursive && strings.Contains(name[len(prefix):], "/") {
			continue
		}
		files = append(files, entry.info(name))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// Write implements maxlines.FileWriter. Archives are opened read-only.
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader) error {
	return &maxlines.PathError{Op: "write", Path: p, Err: maxlines.ErrNotAllowed}
}

// Delete implements maxlines.FileWriter. Archives are opened read-only.
func (a *Adapter) Delete(ctx context.Context, p string) error {
	return &maxlines.PathError{Op: "delete", Path: p, Err: maxlines.ErrNotAllowed}
}

// CreateDir implements maxlines.FileWriter. Archives are opened read-only.
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	return &maxlines.PathError{Op: "createdir", Path: p, Err: maxlines.ErrNotAllowed}
}

// Watch implements maxlines.CanWatch. The archive cannot change once opened,
// so the token never fires.
func (a *Adapter) Watch(ctx context.Context, filter string) (maxlines.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return maxlines.NeverChangeToken{}, nil
}

func (e *zipEntry) info(p string) maxlines.FileInfo {
	info := maxlines.FileInfo{
		Name:  path.Base(p),
		Path:  p,
		IsDir: e.isDir,
	}
	if e.file != nil {
		info.ModTime = e.file.Modified
		if !e.isDir {
			info.Size = int64(e.file.UncompressedSize64)
		}
	}
	return info
}

// ensureParentDirs indexes the directories implied by a nested entry name
func (a *Adapter) ensureParentDirs(name string) {
	dir := path.Dir(name)
	for dir != "." && dir != "/" {
		if _, exists := a.entries[dir]; !exists {
			a.entries[dir] = &zipEntry{isDir: true}
		}
		dir = path.Dir(dir)
	}
}

// normalizePath maps p to a slash-separated archive name without leading or
// trailing slashes; the archive root is ""
func normalizePath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

var (
	_ maxlines.FileSystem = (*Adapter)(nil)
	_ maxlines.CanWatch   = (*Adapter)(nil)
)
