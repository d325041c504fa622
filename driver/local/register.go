package local

import "github.com/gobeaver/maxlines"

func init() {
	maxlines.RegisterDriver("local", func(cfg *maxlines.Config) (maxlines.FileSystem, error) {
		return New(cfg.LocalBasePath)
	})
}
