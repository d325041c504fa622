package maxlines

import (
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Driver backing the directory listing and file reads (local, memory, s3, zip)
	Driver string `env:"MAXLINES_DRIVER,default:local"`

	// Local driver root, or the archive path of the zip driver
	LocalBasePath string `env:"MAXLINES_LOCAL_BASE_PATH,default:."`

	// Memory driver configuration (0 = unlimited)
	MemoryMaxSize int64 `env:"MAXLINES_MEMORY_MAX_SIZE,default:0"`

	// S3 driver configuration
	S3Region          string `env:"MAXLINES_S3_REGION,default:us-east-1"`
	S3Bucket          string `env:"MAXLINES_S3_BUCKET"`
	S3Prefix          string `env:"MAXLINES_S3_PREFIX"`
	S3Endpoint        string `env:"MAXLINES_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"MAXLINES_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"MAXLINES_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"MAXLINES_S3_FORCE_PATH_STYLE,default:false"`

	// Cancel outstanding reads once one read has failed
	CancelOnFailure bool `env:"MAXLINES_CANCEL_ON_FAILURE,default:false"`

	// Checksum used in reports (xxhash, sha256, crc32, none)
	ChecksumAlgorithm string `env:"MAXLINES_CHECKSUM_ALGORITHM,default:xxhash"`

	// Logging
	LogLevel  string `env:"MAXLINES_LOG_LEVEL,default:info"`
	LogFormat string `env:"MAXLINES_LOG_FORMAT,default:text"` // text or json
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
