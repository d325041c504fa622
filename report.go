package maxlines

import (
	"context"
	"fmt"
)

// FileStat describes one file examined by Analyze.
type FileStat struct {
	Path     string
	Lines    int
	Size     int64
	Checksum string
}

// Report is the full outcome of Analyze.
type Report struct {
	Directory string
	Files     []FileStat
	// Winner indexes Files; it is -1 when the directory had no entries.
	Winner int
}

// Found reports whether a winning file exists.
func (r *Report) Found() bool {
	return r.Winner >= 0 && r.Winner < len(r.Files)
}

// WinnerPath returns the winning path, or "" when there is none.
func (r *Report) WinnerPath() string {
	if !r.Found() {
		return ""
	}
	return r.Files[r.Winner].Path
}

// Analyze runs the same pipeline as FindMaxFileInDirectory and keeps the
// per-file line counts, sizes and checksums.
func (f *Finder) Analyze(ctx context.Context, dir string) (*Report, error) {
	paths, err := f.list(ctx, dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Directory: dir, Winner: -1, Files: []FileStat{}}
	if len(paths) == 0 {
		return report, nil
	}

	contents, counts, err := f.count(ctx, paths)
	if err != nil {
		return nil, err
	}

	report.Files = make([]FileStat, len(paths))
	for i, p := range paths {
		sum, err := ChecksumString(contents[i], f.checksum)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", p, err)
		}
		report.Files[i] = FileStat{
			Path:     p,
			Lines:    counts[i],
			Size:     int64(len(contents[i])),
			Checksum: sum,
		}
	}

	report.Winner, err = MaxIndex(counts)
	if err != nil {
		return nil, err
	}

	return report, nil
}
