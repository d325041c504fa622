package maxlines

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/sirupsen/logrus"
)

// Global instance
var (
	defaultFinder *Finder
	defaultOnce   sync.Once
	defaultErr    error
)

// Builder provides a way to create Finder instances with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Init initializes the global Finder instance using the builder's prefix
func (b *Builder) Init() error {
	cfg, err := b.Config()
	if err != nil {
		return err
	}
	return Init(cfg)
}

// New creates a new Finder instance using the builder's prefix
func (b *Builder) New() (*Finder, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Config loads the configuration using the builder's prefix
func (b *Builder) Config() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init initializes the global Finder instance
func Init(configs ...*Config) error {
	defaultOnce.Do(func() {
		var cfg *Config
		if len(configs) > 0 {
			cfg = configs[0]
		} else {
			cfg, defaultErr = GetConfig()
			if defaultErr != nil {
				return
			}
		}

		defaultFinder, defaultErr = New(cfg)
	})

	return defaultErr
}

// New creates a Finder from config, logging to stderr.
func New(cfg *Config) (*Finder, error) {
	return NewWithOutput(cfg, nil)
}

// NewWithOutput creates a Finder from config whose logger writes to out.
// A nil out keeps logrus' default of stderr.
func NewWithOutput(cfg *Config, out io.Writer) (*Finder, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fs, err := CreateDriver(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	logger, err := NewLogger(cfg, out)
	if err != nil {
		return nil, err
	}

	return NewFinder(fs,
		WithLogger(logger.WithField("driver", cfg.Driver)),
		WithLoadCancellation(cfg.CancelOnFailure),
		WithChecksum(ChecksumAlgorithm(cfg.ChecksumAlgorithm)),
	), nil
}

// NewLogger builds the logrus logger described by cfg.
func NewLogger(cfg *Config, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}

	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(cfg.LogFormat) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.LogFormat)
	}

	return logger, nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}

	switch cfg.Driver {
	case "local":
		if cfg.LocalBasePath == "" {
			return errors.New("local base path is required for local driver")
		}
	case "memory":
		if cfg.MemoryMaxSize < 0 {
			return errors.New("memory max size must not be negative")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return errors.New("S3 bucket is required for S3 driver")
		}
	case "zip":
		if cfg.LocalBasePath == "" {
			return errors.New("archive path (local base path) is required for zip driver")
		}
	default:
		return fmt.Errorf("unknown driver: %s (registered: %s)", cfg.Driver, strings.Join(Drivers(), ", "))
	}

	switch ChecksumAlgorithm(cfg.ChecksumAlgorithm) {
	case "", ChecksumNone, ChecksumXXHash, ChecksumSHA256, ChecksumCRC32:
	default:
		return fmt.Errorf("unknown checksum algorithm: %s", cfg.ChecksumAlgorithm)
	}

	return nil
}

// Default returns the global instance, initializing if needed with error handling
func Default() (*Finder, error) {
	if defaultFinder == nil {
		if err := Init(); err != nil {
			return nil, err
		}
	}
	return defaultFinder, nil
}

// NewFromEnv creates instance from environment variables (convenience constructor)
func NewFromEnv() (*Finder, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Reset clears the global instance (for testing)
func Reset() {
	defaultFinder = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}
