package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DBPath     string
	RosterPath string
	CurvesPath string
	OutputDir  string

	// Baseline window and reporting rules.
	BaselineStart        time.Time
	BaselineEnd          time.Time
	LookbackDays         int
	MinWaterYears        int
	FailureRateThreshold float64

	// Upstream call discipline, shared by every adapter.
	RequestDelay     time.Duration
	RetryMaxAttempts int
	RetryBackoffStep time.Duration
	HTTPTimeout      time.Duration

	Sources Sources

	KafkaBrokers     []string
	KafkaReportTopic string
	KafkaEnabled     bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ScheduleAt      string
}

// Sources holds per-upstream settings. Any field may be overridden by the
// YAML document named in SOURCES_FILE.
type Sources struct {
	RISE  RISEConfig  `yaml:"rise"`
	USACE USACEConfig `yaml:"usace"`
	USGS  USGSConfig  `yaml:"usgs"`
	CDEC  CDECConfig  `yaml:"cdec"`
}

type RISEConfig struct {
	BaseURL string `yaml:"base_url"`
}

type USACEConfig struct {
	BaseURL    string `yaml:"base_url"`
	ChunkYears int    `yaml:"chunk_years"`
}

type USGSConfig struct {
	BaseURL                 string   `yaml:"base_url"`
	StorageParameterCode    string   `yaml:"storage_parameter_code"`
	ElevationParameterCodes []string `yaml:"elevation_parameter_codes"`
	PageLimit               int      `yaml:"page_limit"`
}

type CDECConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	Sensor    int    `yaml:"sensor"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	baselineStart, err := parseDateEnv("BASELINE_START", "1990-10-01")
	if err != nil {
		return nil, err
	}
	baselineEnd, err := parseDateEnv("BASELINE_END", "2020-09-30")
	if err != nil {
		return nil, err
	}

	lookbackDays, err := parseIntEnv("LOOKBACK_DAYS", 7, 0)
	if err != nil {
		return nil, err
	}
	minWaterYears, err := parseIntEnv("MIN_WATER_YEARS", 20, 1)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := parseIntEnv("RETRY_MAX_ATTEMPTS", 3, 1)
	if err != nil {
		return nil, err
	}

	failureRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FAILURE_RATE_THRESHOLD", "0.2"), 64)
	if err != nil || failureRate < 0 || failureRate > 1 {
		return nil, errors.New("invalid FAILURE_RATE_THRESHOLD")
	}

	requestDelay, err := parseDurationEnv("REQUEST_DELAY", "250ms", true)
	if err != nil {
		return nil, err
	}
	backoffStep, err := parseDurationEnv("RETRY_BACKOFF_STEP", "2s", true)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parseDurationEnv("HTTP_TIMEOUT", "60s", false)
	if err != nil {
		return nil, err
	}

	sources, err := loadSources()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DBPath:     sharedcfg.EnvOrDefault("DB_PATH", "data/reservoirs.db"),
		RosterPath: sharedcfg.EnvOrDefault("ROSTER_PATH", "data/locations.csv"),
		CurvesPath: os.Getenv("CURVES_PATH"),
		OutputDir:  sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),

		BaselineStart:        baselineStart,
		BaselineEnd:          baselineEnd,
		LookbackDays:         lookbackDays,
		MinWaterYears:        minWaterYears,
		FailureRateThreshold: failureRate,

		RequestDelay:     requestDelay,
		RetryMaxAttempts: retryAttempts,
		RetryBackoffStep: backoffStep,
		HTTPTimeout:      httpTimeout,

		Sources: sources,

		KafkaBrokers:     brokers,
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "reservoir-conditions"),
		KafkaEnabled:     kafkaEnabled,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		ScheduleAt:      sharedcfg.EnvOrDefault("SCHEDULE_AT", "06:00"),
	}

	if !cfg.BaselineEnd.After(cfg.BaselineStart) {
		return nil, errors.New("BASELINE_END must be after BASELINE_START")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if _, err := time.Parse("15:04", cfg.ScheduleAt); err != nil {
		return nil, errors.New("invalid SCHEDULE_AT, want HH:MM")
	}

	return cfg, nil
}

// BaselineWindow returns the configured historical window.
func (c *Config) BaselineWindow() domain.DateRange {
	return domain.DateRange{Start: c.BaselineStart, End: c.BaselineEnd}
}

func loadSources() (Sources, error) {
	usaceChunk, err := parseIntEnv("USACE_CHUNK_YEARS", 1, 1)
	if err != nil {
		return Sources{}, err
	}
	usgsLimit, err := parseIntEnv("USGS_PAGE_LIMIT", 10000, 1)
	if err != nil {
		return Sources{}, err
	}
	cdecSensor, err := parseIntEnv("CDEC_SENSOR", 15, 1)
	if err != nil {
		return Sources{}, err
	}

	s := Sources{
		RISE: RISEConfig{
			BaseURL: sharedcfg.EnvOrDefault("RISE_BASE_URL", "https://data.usbr.gov/rise-edr/collections/rise"),
		},
		USACE: USACEConfig{
			BaseURL:    sharedcfg.EnvOrDefault("USACE_BASE_URL", "https://water.usace.army.mil/cda/reporting/providers"),
			ChunkYears: usaceChunk,
		},
		USGS: USGSConfig{
			BaseURL:                 sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://api.waterdata.usgs.gov/ogcapi/v0"),
			StorageParameterCode:    "00054",
			ElevationParameterCodes: []string{"62614", "62615", "00062"},
			PageLimit:               usgsLimit,
		},
		CDEC: CDECConfig{
			BaseURL:   sharedcfg.EnvOrDefault("CDEC_BASE_URL", "https://cdec.water.ca.gov/dynamicapp/req/CSVDataServlet"),
			UserAgent: sharedcfg.EnvOrDefault("CDEC_USER_AGENT", "reservoir-data-etl/1.0 (+https://github.com/couchcryptid/reservoir-data-etl)"),
			Sensor:    cdecSensor,
		},
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		if err := applySourcesFile(&s, path); err != nil {
			return Sources{}, fmt.Errorf("SOURCES_FILE: %w", err)
		}
	}
	return s, nil
}

func parseDateEnv(key, def string) (time.Time, error) {
	t, err := domain.ParseDate(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

func parseIntEnv(key string, def, minValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minValue {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minValue)
	}
	return n, nil
}

func parseDurationEnv(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (!allowZero && d == 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
