package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gobeaver/maxlines"
	// Register the drivers selectable through --driver
	_ "github.com/gobeaver/maxlines/driver/local"
	_ "github.com/gobeaver/maxlines/driver/memory"
	_ "github.com/gobeaver/maxlines/driver/s3"
	_ "github.com/gobeaver/maxlines/driver/zip"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// options holds the command line flags
type options struct {
	envFile         string
	driver          string
	root            string
	logLevel        string
	checksum        string
	cancelOnFailure bool
	verbose         bool
	watch           bool
}

// NewRootCommand creates and returns the root cobra command for maxlines
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "maxlines [directory]",
		Short: "Find the file with the most non-empty lines in a directory",
		Long: `maxlines lists a directory, reads every entry concurrently and prints
the entry with the most non-empty lines. Ties go to the entry listed first.

Settings are read from the environment (BEAVER_MAXLINES_*), optionally
seeded from a .env file, and can be overridden with flags.

Exit code: 0 on success (including an empty directory), 1 on any failure`,
		Args:    cobra.MaximumNArgs(1),
		Version: Version,
		// main prints the error; silence usage to avoid duplicate help text
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg, opts, dir, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	addFlags(cmd.Flags(), opts)

	return cmd
}

func addFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default: .env when present)")
	flags.StringVar(&opts.driver, "driver", "", "storage driver ("+strings.Join(maxlines.Drivers(), ", ")+")")
	flags.StringVar(&opts.root, "root", "", "base path of the local driver, or archive path of the zip driver")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.checksum, "checksum", "", "checksum shown with --verbose (xxhash, sha256, crc32, none)")
	flags.BoolVar(&opts.cancelOnFailure, "cancel-on-failure", false, "cancel outstanding reads after the first failure")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print line counts for every file")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "recompute whenever the directory changes")
}

// loadConfig reads the environment configuration and applies flag overrides
func loadConfig(cmd *cobra.Command, opts *options) (*maxlines.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := maxlines.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = opts.driver
	}
	if flags.Changed("root") {
		cfg.LocalBasePath = opts.root
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("checksum") {
		cfg.ChecksumAlgorithm = opts.checksum
	}
	if flags.Changed("cancel-on-failure") {
		cfg.CancelOnFailure = opts.cancelOnFailure
	}

	return cfg, nil
}

// run executes one search, or keeps searching on every change with --watch
func run(ctx context.Context, cfg *maxlines.Config, opts *options, dir string, out, errOut io.Writer) error {
	dir = resolveDir(cfg, dir)

	finder, err := maxlines.NewWithOutput(cfg, errOut)
	if err != nil {
		return err
	}
	if closer, ok := finder.FileSystem().(io.Closer); ok {
		defer closer.Close()
	}

	err = search(ctx, finder, dir, opts.verbose, out)
	if !opts.watch {
		return err
	}
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}

	watcher, ok := finder.FileSystem().(maxlines.CanWatch)
	if !ok {
		return fmt.Errorf("driver %s does not support --watch", cfg.Driver)
	}

	err = maxlines.OnChange(ctx,
		func() (maxlines.ChangeToken, error) {
			token, err := watcher.Watch(ctx, path.Join(dir, "*"))
			if err != nil {
				return nil, err
			}
			if !token.ActiveChangeCallbacks() {
				return nil, fmt.Errorf("driver %s does not report changes", cfg.Driver)
			}
			return token, nil
		},
		func() {
			if err := search(ctx, finder, dir, opts.verbose, out); err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
			}
		},
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resolveDir maps the directory argument into the driver's slash-separated
// namespace. Absolute directories, and relative ones climbing above the local
// driver's base path, re-root the local driver at the volume root.
func resolveDir(cfg *maxlines.Config, dir string) string {
	if cfg.Driver != "local" {
		return filepath.ToSlash(dir)
	}

	if cleaned := path.Clean(filepath.ToSlash(dir)); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		if abs, err := filepath.Abs(filepath.Join(cfg.LocalBasePath, dir)); err == nil {
			dir = abs
		}
	}

	if filepath.IsAbs(dir) {
		cfg.LocalBasePath = filepath.VolumeName(dir) + string(filepath.Separator)
		dir = strings.TrimPrefix(dir, filepath.VolumeName(dir))
	}
	return filepath.ToSlash(dir)
}

func search(ctx context.Context, finder *maxlines.Finder, dir string, verbose bool, out io.Writer) error {
	if verbose {
		report, err := finder.Analyze(ctx, dir)
		if err != nil {
			return err
		}
		printReport(out, report)
		return nil
	}

	winner, found, err := finder.FindMaxFileInDirectory(ctx, dir)
	if err != nil {
		return err
	}
	printWinner(out, dir, winner, found)
	return nil
}

func printWinner(out io.Writer, dir, winner string, found bool) {
	if !found {
		color.New(color.FgYellow).Fprintf(out, "No files found in %s\n", dir)
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintln(out, winner)
}

func printReport(out io.Writer, report *maxlines.Report) {
	if !report.Found() {
		printWinner(out, report.Directory, "", false)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"", "File", "Lines", "Bytes", "Checksum"})
	for i, f := range report.Files {
		mark := ""
		if i == report.Winner {
			mark = "*"
		}
		t.AppendRow(table.Row{mark, f.Path, f.Lines, f.Size, f.Checksum})
	}
	t.Render()

	printWinner(out, report.Directory, report.WinnerPath(), true)
}
