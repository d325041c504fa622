package zip

import (
	"errors"

	"github.com/gobeaver/maxlines"
)

func init() {
	maxlines.RegisterDriver("zip", func(cfg *maxlines.Config) (maxlines.FileSystem, error) {
		// LocalBasePath names the archive
		if cfg.LocalBasePath == "" {
			return nil, errors.New("zip driver requires LocalBasePath to be set to the ZIP file path")
		}
		return Open(cfg.LocalBasePath)
	})
}
