package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobeaver/maxlines"
)

// Adapter provides a local filesystem implementation of maxlines.FileSystem.
// Paths are slash-separated and resolved below root.
type Adapter struct {
	root string
}

// New creates a new local filesystem adapter rooted at root.
// The root directory must already exist.
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, mapError("open", root, err)
	}
	if !info.IsDir() {
		return nil, &maxlines.PathError{Op: "open", Path: root, Err: maxlines.ErrNotDir}
	}

	return &Adapter{root: absRoot}, nil
}

// Root returns the absolute root directory of the adapter
func (a *Adapter) Root() string {
	return a.root
}

// resolve maps p to an absolute OS path, refusing paths outside the root
func (a *Adapter) resolve(op, p string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.FromSlash(p))
	if !isPathUnderRoot(a.root, fullPath) {
		return "", &maxlines.PathError{Op: op, Path: p, Err: maxlines.ErrNotAllowed}
	}
	return fullPath, nil
}

// Write implements maxlines.FileWriter
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("write", p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return mapError("write", p, err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return mapError("write", p, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return &maxlines.PathError{Op: "write", Path: p, Err: err}
	}
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

// ReadAll implements maxlines.ContentReader. Only regular files can be read.
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("read", p)
	if err != nil {
		return nil, err
	}

	// Stat first so FIFOs and devices are never opened
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError("read", p, err)
	}
	if info.IsDir() {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrIsDir}
	}
	if !info.Mode().IsRegular() {
		return nil, &maxlines.PathError{Op: "read", Path: p, Err: maxlines.ErrNotSupported}
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, mapError("read", p, err)
	}
	return data, nil
}

// Delete implements maxlines.FileWriter
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("delete", p)
	if err != nil {
		return err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return mapError("delete", p, err)
	}
	if info.IsDir() {
		return &maxlines.PathError{Op: "delete", Path: p, Err: maxlines.ErrIsDir}
	}

	if err := os.Remove(fullPath); err != nil {
		return mapError("delete", p, err)
	}
	return nil
}

// CreateDir implements maxlines.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("createdir", p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return mapError("createdir", p, err)
	}
	return nil
}

// Stat implements maxlines.FileReader
func (a *Adapter) Stat(ctx context.Context, p string) (*maxlines.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("stat", p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError("stat", p, err)
	}

	return &maxlines.FileInfo{
		Name:    info.Name(),
		Path:    p,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

// ListContents implements maxlines.DirectoryLister.
// Entries are sorted by path; paths are p joined with the entry name.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]maxlines.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("listcontents", p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError("listcontents", p, err)
	}
	if !info.IsDir() {
		return nil, &maxlines.PathError{Op: "listcontents", Path: p, Err: maxlines.ErrNotDir}
	}

	files := []maxlines.FileInfo{}

	if !recursive {
		entries, err := os.ReadDir(fullPath)
		if err != nil {
			return nil, mapError("listcontents", p, err)
		}

		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				// removed between ReadDir and Info
				continue
			}
			files = append(files, fileInfo(path.Join(p, entry.Name()), info))
		}
		return files, nil
	}

	err = filepath.WalkDir(fullPath, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if walkPath == fullPath {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(fullPath, walkPath)
		if err != nil {
			return err
		}
		files = append(files, fileInfo(path.Join(p, filepath.ToSlash(rel)), info))
		return nil
	})
	if err != nil {
		return nil, mapError("listcontents", p, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func fileInfo(p string, info fs.FileInfo) maxlines.FileInfo {
	return maxlines.FileInfo{
		Name:    info.Name(),
		Path:    p,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}

// mapError translates OS errors into the maxlines sentinels
func mapError(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &maxlines.PathError{Op: op, Path: p, Err: maxlines.ErrNotExist}
	case errors.Is(err, fs.ErrPermission):
		return &maxlines.PathError{Op: op, Path: p, Err: maxlines.ErrPermission}
	default:
		return &maxlines.PathError{Op: op, Path: p, Err: err}
	}
}

func isPathUnderRoot(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
