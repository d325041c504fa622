package maxlines

import (
	"context"
	"io"
	"path"

	"github.com/sirupsen/logrus"
)

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithLogger sets the logger used for stage traces. Failures are returned to
// the caller and never logged by the Finder.
func WithLogger(logger logrus.FieldLogger) FinderOption {
	return func(f *Finder) {
		if logger != nil {
			f.log = logger
		}
	}
}

// WithLoadCancellation makes the Finder cancel outstanding reads after the
// first read failure.
func WithLoadCancellation(enabled bool) FinderOption {
	return func(f *Finder) {
		f.cancelOnFailure = enabled
	}
}

// WithChecksum sets the algorithm Analyze uses for FileStat.Checksum.
func WithChecksum(algorithm ChecksumAlgorithm) FinderOption {
	return func(f *Finder) {
		f.checksum = algorithm
	}
}

// Finder locates the file with the most non-empty lines.
// A Finder holds no per-call state and is safe for concurrent use.
type Finder struct {
	fs              FileReader
	log             logrus.FieldLogger
	cancelOnFailure bool
	checksum        ChecksumAlgorithm
}

// NewFinder creates a Finder reading through fs.
func NewFinder(fs FileReader, opts ...FinderOption) *Finder {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	f := &Finder{
		fs:       fs,
		log:      discard,
		checksum: ChecksumXXHash,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FileSystem returns the reader the Finder works on.
func (f *Finder) FileSystem() FileReader {
	return f.fs
}

// FindMaxFileInDirectory lists dir and returns the path of the entry with the
// most non-empty lines. found is false when dir has no entries.
//
// Returned paths are dir joined with the entry name. A listing failure is
// returned as is and no file is read.
func (f *Finder) FindMaxFileInDirectory(ctx context.Context, dir string) (winner string, found bool, err error) {
	paths, err := f.list(ctx, dir)
	if err != nil {
		return "", false, err
	}
	return f.FindMaxFile(ctx, paths)
}

// FindMaxFile loads paths and returns the one with the most non-empty lines,
// the first one on ties. An empty paths returns found == false without
// reading anything. Any read failure is returned unchanged.
func (f *Finder) FindMaxFile(ctx context.Context, paths []string) (winner string, found bool, err error) {
	if len(paths) == 0 {
		f.log.Debug("No files to compare")
		return "", false, nil
	}

	_, counts, err := f.count(ctx, paths)
	if err != nil {
		return "", false, err
	}

	i, err := MaxIndex(counts)
	if err != nil {
		return "", false, err
	}

	f.log.WithFields(logrus.Fields{
		"winner": paths[i],
		"lines":  counts[i],
	}).Debug("Selected file with most lines")

	return paths[i], true, nil
}

func (f *Finder) list(ctx context.Context, dir string) ([]string, error) {
	entries, err := f.fs.ListContents(ctx, dir, false)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(entries))
	for i, entry := range entries {
		paths[i] = path.Join(dir, entry.Name)
	}

	f.log.WithFields(logrus.Fields{
		"directory": dir,
		"entries":   len(paths),
	}).Debug("Listed directory")

	return paths, nil
}

// count loads paths and counts the non-empty lines of each, in input order.
func (f *Finder) count(ctx context.Context, paths []string) ([]string, []int, error) {
	var opts []LoadOption
	if f.cancelOnFailure {
		opts = append(opts, WithCancelOnFailure())
	}

	contents, err := LoadAll(ctx, f.fs, paths, opts...)
	if err != nil {
		return nil, nil, err
	}

	counts := make([]int, len(contents))
	for i, content := range contents {
		counts[i] = CountLines(content)
	}

	f.log.WithField("files", len(paths)).Debug("Loaded files")

	return contents, counts, nil
}

// Outcome is the single result delivered by Start.
type Outcome struct {
	Path  string
	Found bool
	Err   error
}

// Start runs FindMaxFileInDirectory in the background. The returned channel
// receives exactly one Outcome and is then closed.
func (f *Finder) Start(ctx context.Context, dir string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		winner, found, err := f.FindMaxFileInDirectory(ctx, dir)
		ch <- Outcome{Path: winner, Found: found, Err: err}
	}()
	return ch
}
