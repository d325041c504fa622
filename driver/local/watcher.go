package local

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gobeaver/maxlines"
	"github.com/gobwas/glob"
)

// Watch implements maxlines.CanWatch.
//
// The filter is a slash-separated glob relative to the root, such as
// "notes/*" or "logs/**". The token fires once, on the first create, write,
// remove or rename of a matching path, and the underlying watcher is closed.
func (a *Adapter) Watch(ctx context.Context, filter string) (maxlines.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pattern := strings.TrimPrefix(path.Clean("/"+filter), "/")
	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &maxlines.PathError{Op: "watch", Path: filter, Err: err}
	}

	watchPath, err := a.resolve("watch", staticDir(pattern))
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(watchPath); err != nil {
		return nil, mapError("watch", filter, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &maxlines.PathError{Op: "watch", Path: filter, Err: err}
	}

	if err := watcher.Add(watchPath); err != nil {
		watcher.Close()
		return nil, mapError("watch", filter, err)
	}

	// Recursive patterns need every subdirectory registered
	if strings.Contains(pattern, "**") {
		if err := addSubdirs(watcher, watchPath); err != nil {
			watcher.Close()
			return nil, mapError("watch", filter, err)
		}
	}

	token := maxlines.NewCallbackChangeToken()

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}

				rel, err := filepath.Rel(a.root, event.Name)
				if err != nil {
					continue
				}
				if matcher.Match(filepath.ToSlash(rel)) {
					token.SignalChange()
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// watcher errors are not fatal; keep waiting for events
			}
		}
	}()

	return token, nil
}

// dirWatcher is the part of *fsnotify.Watcher used to register directories
type dirWatcher interface {
	Add(name string) error
}

// addSubdirs registers every directory below root with w. The first walk or
// registration failure stops the walk and is returned.
func addSubdirs(w dirWatcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == root {
			return nil
		}
		return w.Add(p)
	})
}

// staticDir returns the directory part of pattern that has no glob syntax
func staticDir(pattern string) string {
	idx := strings.IndexAny(pattern, "*?[{")
	if idx < 0 {
		return path.Dir(pattern)
	}
	prefix := pattern[:idx]
	if slash := strings.LastIndex(prefix, "/"); slash >= 0 {
		return prefix[:slash]
	}
	return ""
}
