// Package maxlines finds the file with the most non-empty lines in a directory.
//
// The work is split into small pieces that can be tested on their own:
//
//   - [CountLines] counts the non-empty lines of a text.
//   - [MaxIndex] picks the index of the greatest value, first one on ties.
//   - [LoadAll] reads a batch of files concurrently, keeping input order.
//   - [Finder] lists a directory and composes the three above.
//
// [CountLines] and [MaxIndex] know nothing about files or paths. Filesystem
// access goes through the narrow [DirectoryLister] and [ContentReader]
// interfaces, combined in [FileReader], so any storage backend can be plugged in.
//
// # Storage Backends
//
// Drivers live in their own packages and register themselves on import:
//
//   - Local filesystem (github.com/gobeaver/maxlines/driver/local)
//   - In-memory (github.com/gobeaver/maxlines/driver/memory)
//   - Amazon S3 and compatible stores (github.com/gobeaver/maxlines/driver/s3)
//   - Read-only ZIP archives (github.com/gobeaver/maxlines/driver/zip)
//
// # Basic Usage
//
//	import "github.com/gobeaver/maxlines/driver/local"
//
//	fs, err := local.New("./notes")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	finder := maxlines.NewFinder(fs)
//	winner, found, err := finder.FindMaxFileInDirectory(ctx, ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !found {
//	    fmt.Println("directory is empty")
//	}
//
// Entries are joined with the directory, so listing "docs" yields paths like
// "docs/a.txt", and the winner is returned in that same form.
//
// # Failure Policy
//
// The first read that fails decides the outcome. The error is returned as is,
// without waiting for the other reads, and no partial result is produced.
// Outstanding reads keep running unless [WithLoadCancellation] is set, in which
// case their context is cancelled.
//
// An empty directory is not an error: the found result is false.
//
// # Watching
//
// Drivers implementing [CanWatch] hand out single-use [ChangeToken] values.
// [OnChange] turns them into a loop, which the maxlines command uses for --watch.
//
// # Configuration
//
// [Config] is loaded from BEAVER_MAXLINES_* environment variables:
//
//	finder, err := maxlines.NewFromEnv()
//
// or built directly:
//
//	finder, err := maxlines.New(&maxlines.Config{
//	    Driver:        "local",
//	    LocalBasePath: "/var/data",
//	})
package maxlines
