package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Output modes.
const (
	OutputFiles   = "files"
	OutputGnuplot = "gnuplot"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ArchivePath          string
	ArchiveSiteCacheSize int
	ArchiveMaxQPS        float64
	DaysBack             int
	PipelineWorkers      int

	OutputMode  string
	OutputDir   string
	GnuplotPath string

	// Climatology is skipped when empty.
	ClimoDatabaseURL string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	MinIOEnabled   bool
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	NATSEnabled       bool
	NATSURL           string
	NATSSubjectPrefix string

	WebSocketEnabled bool

	HTTPAddr        string
	Schedule        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	daysBack, err := parseInt("DAYS_BACK", 2)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("PIPELINE_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("ARCHIVE_SITE_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	maxQPS, err := parseFloat("ARCHIVE_MAX_QPS", 0)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED")
	if err != nil {
		return nil, err
	}
	minioEnabled, err := parseBool("MINIO_ENABLED")
	if err != nil {
		return nil, err
	}
	minioSSL, err := parseBool("MINIO_USE_SSL")
	if err != nil {
		return nil, err
	}
	natsEnabled, err := parseBool("NATS_ENABLED")
	if err != nil {
		return nil, err
	}
	wsEnabled, err := parseBool("WEBSOCKET_ENABLED")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ArchivePath:          sharedcfg.EnvOrDefault("ARCHIVE_PATH", "bufkit/archive.db"),
		ArchiveSiteCacheSize: cacheSize,
		ArchiveMaxQPS:        maxQPS,
		DaysBack:             daysBack,
		PipelineWorkers:      workers,

		OutputMode:  sharedcfg.EnvOrDefault("OUTPUT_MODE", OutputFiles),
		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "images"),
		GnuplotPath: sharedcfg.EnvOrDefault("GNUPLOT_PATH", "gnuplot"),

		ClimoDatabaseURL: os.Getenv("CLIMO_DATABASE_URL"),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "merged-soundings"),

		MinIOEnabled:   minioEnabled,
		MinIOEndpoint:  sharedcfg.EnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    sharedcfg.EnvOrDefault("MINIO_BUCKET", "sounding-graphs"),
		MinIOUseSSL:    minioSSL,

		NATSEnabled:       natsEnabled,
		NATSURL:           sharedcfg.EnvOrDefault("NATS_URL", "nats://localhost:4222"),
		NATSSubjectPrefix: sharedcfg.EnvOrDefault("NATS_SUBJECT_PREFIX", "soundings.merged"),

		WebSocketEnabled: wsEnabled,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		Schedule:        sharedcfg.EnvOrDefault("SCHEDULE", "@hourly"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ArchivePath == "" {
		return errors.New("ARCHIVE_PATH is required")
	}
	if c.DaysBack < 0 {
		return errors.New("DAYS_BACK must not be negative")
	}
	if c.PipelineWorkers <= 0 {
		return errors.New("PIPELINE_WORKERS must be positive")
	}
	if c.ArchiveSiteCacheSize < 0 {
		return errors.New("ARCHIVE_SITE_CACHE_SIZE must not be negative")
	}
	if c.ArchiveMaxQPS < 0 {
		return errors.New("ARCHIVE_MAX_QPS must not be negative")
	}
	switch c.OutputMode {
	case OutputFiles, OutputGnuplot:
	default:
		return fmt.Errorf("OUTPUT_MODE must be %q or %q, got %q", OutputFiles, OutputGnuplot, c.OutputMode)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if c.MinIOEnabled && (c.MinIOAccessKey == "" || c.MinIOSecretKey == "") {
		return errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENABLED is true")
	}
	if c.NATSEnabled && c.NATSSubjectPrefix == "" {
		return errors.New("NATS_SUBJECT_PREFIX is required when NATS_ENABLED is true")
	}
	return nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return f, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}
