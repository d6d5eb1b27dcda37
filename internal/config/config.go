package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string // empty disables the ops server
	ShutdownTimeout time.Duration

	// Pairing thresholds.
	MinMainshockMag float64
	MaxDaysBefore   int
	MaxRadiusKm     float64
	CountryFilter   string
	PairWorkers     int

	// Kafka pair sink.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaPairsTopic    string
	BatchSize          int
	BatchFlushInterval time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Upstream catalog and enrichment datasets.
	USGSBaseURL       string
	USGSTimeout       time.Duration
	FaultsPath        string
	FaultNameProperty string

	DBPath string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	usgsTimeout, err := parsePositiveDuration("USGS_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	minMag, err := parseFloat("MIN_MAINSHOCK_MAG", "3.0")
	if err != nil {
		return nil, err
	}
	maxDays, err := parseInt("MAX_DAYS_BEFORE", "29")
	if err != nil {
		return nil, err
	}
	maxRadius, err := parseFloat("MAX_RADIUS_KM", "500")
	if err != nil {
		return nil, err
	}
	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		MinMainshockMag: minMag,
		MaxDaysBefore:   maxDays,
		MaxRadiusKm:     maxRadius,
		CountryFilter:   strings.TrimSpace(os.Getenv("COUNTRY_FILTER")),
		PairWorkers:     workers,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaPairsTopic:    sharedcfg.EnvOrDefault("KAFKA_PAIRS_TOPIC", "seismic-swarm-pairs"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		USGSBaseURL:       sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov"),
		USGSTimeout:       usgsTimeout,
		FaultsPath:        os.Getenv("FAULTS_PATH"),
		FaultNameProperty: sharedcfg.EnvOrDefault("FAULT_NAME_PROPERTY", "name"),

		DBPath: sharedcfg.EnvOrDefault("DB_PATH", "seismic.db"),
	}

	if err := cfg.validateSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pairing thresholds and the cross-field constraints.
// Commands that pair call it after CLI flags override the environment; Load
// leaves thresholds alone so commands that never pair are not blocked by
// them.
func (c *Config) Validate() error {
	if err := c.PairParams().Validate(); err != nil {
		return err
	}
	return c.validateSettings()
}

func (c *Config) validateSettings() error {
	if c.PairWorkers < 1 {
		return errors.New("PAIR_WORKERS must resolve to at least one worker")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaPairsTopic == "" {
			return errors.New("KAFKA_PAIRS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

// PairParams returns the pairing thresholds.
func (c *Config) PairParams() swarm.Params {
	return swarm.Params{
		MinMainshockMag: c.MinMainshockMag,
		MaxDaysBefore:   c.MaxDaysBefore,
		MaxRadiusKm:     c.MaxRadiusKm,
		CountryFilter:   c.CountryFilter,
	}
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(sharedcfg.EnvOrDefault(key, def)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key, def string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(sharedcfg.EnvOrDefault(key, def)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// parseWorkers reads PAIR_WORKERS; 0 means one worker per available CPU.
func parseWorkers() (int, error) {
	n, err := parseInt("PAIR_WORKERS", "1")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("PAIR_WORKERS must be >= 0")
	}
	if n == 0 {
		return runtime.GOMAXPROCS(0), nil
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
