package memory

import "github.com/gobeaver/maxlines"

func init() {
	maxlines.RegisterDriver("memory", func(cfg *maxlines.Config) (maxlines.FileSystem, error) {
		return New(Config{MaxSize: cfg.MemoryMaxSize}), nil
	})
}
