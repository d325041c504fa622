package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/maxlines"
)

func init() {
	color.NoColor = true
}

// execute runs the root command with args and returns stdout and stderr
func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := execute(t, context.Background(), "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "maxlines [directory]")
	assert.Contains(t, out, "--cancel-on-failure")
	assert.Contains(t, out, "--watch")
	assert.Contains(t, out, "local, memory, s3, zip")
}

func TestRootCommandFindsWinner(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "local")
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt": "1\n2",
		"b.txt": "1\n2\n3\n",
		"c.txt": "1\n\n\n",
	})

	out, _, err := execute(t, context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "b.txt"))+"\n", out)
}

func TestRootCommandVerbose(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "local")
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"short.txt": "x",
		"long.txt":  "x\ny\nz",
	})

	out, _, err := execute(t, context.Background(), "--verbose", "--checksum", "crc32", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "short.txt")
	assert.Contains(t, out, "long.txt")
	assert.Contains(t, out, "71229f00")
	assert.Contains(t, out, "*")
	assert.True(t, strings.HasSuffix(out, "long.txt\n"), "winner should be printed last: %s", out)
}

func TestRootCommandEmptyDirectory(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "local")
	dir := t.TempDir()

	out, _, err := execute(t, context.Background(), dir)
	require.NoError(t, err)

	assert.Contains(t, out, "No files found in")
}

func TestRootCommandMissingDirectory(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "local")
	dir := filepath.Join(t.TempDir(), "missing")

	_, _, err := execute(t, context.Background(), dir)
	require.Error(t, err)

	assert.True(t, maxlines.IsNotExist(err), "expected not exist error, got %v", err)
}

func TestRootCommandSubdirectoryFails(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "local")
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "1"})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	_, _, err := execute(t, context.Background(), dir)
	require.Error(t, err)

	assert.ErrorIs(t, err, maxlines.ErrIsDir)
}

func TestRootCommandParentRelativeDirectory(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "local")
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "cwd"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(base, "target"), 0o755))
	writeFiles(t, filepath.Join(base, "target"), map[string]string{
		"x.txt": "1\n2\n3",
		"y.txt": "1",
	})
	t.Chdir(filepath.Join(base, "cwd"))

	out, _, err := execute(t, context.Background(), "../target")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(out, "/target/x.txt\n"), "unexpected output: %q", out)
}

func TestRootCommandTooManyArgs(t *testing.T) {
	_, _, err := execute(t, context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestRootCommandEnvFile(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("BEAVER_MAXLINES_LOG_LEVEL"))

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BEAVER_MAXLINES_LOG_LEVEL=shouty\n"), 0o644))

	_, _, err := execute(t, context.Background(), "--env-file", envFile, t.TempDir())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRootCommandMissingEnvFile(t *testing.T) {
	_, _, err := execute(t, context.Background(), "--env-file", filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "failed to load env file")
}

func TestRootCommandWatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	out, _, err := execute(t, ctx, "--driver", "memory", "--watch")
	require.NoError(t, err)

	assert.Contains(t, out, "No files found in .")
}

func writeZip(t *testing.T, zipPath string, files map[string]string) {
	t.Helper()
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestRootCommandZipDriver(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "notes.zip")
	writeZip(t, zipPath, map[string]string{
		"notes/a.txt": "1",
		"notes/b.txt": "1\n2\n3",
	})

	out, _, err := execute(t, context.Background(), "--driver", "zip", "--root", zipPath, "notes")
	require.NoError(t, err)

	assert.Equal(t, "notes/b.txt\n", out)
}

func TestRootCommandWatchNeedsChangeNotifications(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "notes.zip")
	writeZip(t, zipPath, map[string]string{"a.txt": "1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, _, err := execute(t, ctx, "--driver", "zip", "--root", zipPath, "--watch")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "driver zip does not report changes")
	assert.Equal(t, "a.txt\n", out)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("BEAVER_MAXLINES_DRIVER", "memory")
	t.Setenv("BEAVER_MAXLINES_CHECKSUM_ALGORITHM", "crc32")
	t.Setenv("BEAVER_MAXLINES_LOG_LEVEL", "warn")

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *maxlines.Config)
	}{
		{
			name: "environment only",
			args: nil,
			check: func(t *testing.T, cfg *maxlines.Config) {
				assert.Equal(t, "memory", cfg.Driver)
				assert.Equal(t, "crc32", cfg.ChecksumAlgorithm)
				assert.Equal(t, "warn", cfg.LogLevel)
				assert.False(t, cfg.CancelOnFailure)
			},
		},
		{
			name: "flags win over environment",
			args: []string{"--driver", "local", "--root", "/data", "--checksum", "sha256", "--log-level", "debug", "--cancel-on-failure"},
			check: func(t *testing.T, cfg *maxlines.Config) {
				assert.Equal(t, "local", cfg.Driver)
				assert.Equal(t, "/data", cfg.LocalBasePath)
				assert.Equal(t, "sha256", cfg.ChecksumAlgorithm)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.True(t, cfg.CancelOnFailure)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			opts := &options{}
			addFlags(cmd.Flags(), opts)
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg, err := loadConfig(cmd, opts)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestResolveDir(t *testing.T) {
	t.Run("relative local directory is unchanged", func(t *testing.T) {
		cfg := &maxlines.Config{Driver: "local", LocalBasePath: "base"}
		assert.Equal(t, "notes", resolveDir(cfg, "notes"))
		assert.Equal(t, "base", cfg.LocalBasePath)
	})

	t.Run("absolute local directory re-roots the driver", func(t *testing.T) {
		abs := t.TempDir()
		cfg := &maxlines.Config{Driver: "local", LocalBasePath: "base"}

		dir := resolveDir(cfg, abs)
		assert.Equal(t, filepath.VolumeName(abs)+string(filepath.Separator), cfg.LocalBasePath)
		assert.Equal(t, filepath.ToSlash(abs[len(filepath.VolumeName(abs)):]), dir)
	})

	t.Run("parent-relative local directory re-roots the driver", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(base, "cwd"), 0o755))
		t.Chdir(filepath.Join(base, "cwd"))

		want, err := filepath.Abs(filepath.Join("..", "target"))
		require.NoError(t, err)

		cfg := &maxlines.Config{Driver: "local", LocalBasePath: "."}
		dir := resolveDir(cfg, "../target")
		assert.Equal(t, filepath.VolumeName(want)+string(filepath.Separator), cfg.LocalBasePath)
		assert.Equal(t, filepath.ToSlash(want[len(filepath.VolumeName(want)):]), dir)
	})

	t.Run("descending local directory stays under the base path", func(t *testing.T) {
		cfg := &maxlines.Config{Driver: "local", LocalBasePath: "."}
		assert.Equal(t, "a/../b", resolveDir(cfg, "a/../b"))
		assert.Equal(t, ".", cfg.LocalBasePath)
	})

	t.Run("memory directories are left alone", func(t *testing.T) {
		cfg := &maxlines.Config{Driver: "memory"}
		assert.Equal(t, "/notes", resolveDir(cfg, "/notes"))
	})
}
