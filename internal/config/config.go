package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/civic-data-etl/internal/scheduler"
)

// Upstream defaults.
const (
	DefaultCrashAPIURL       = "https://services.arcgis.com/p5v98VHDX9Atv3l7/arcgis/rest/services/CrashData_test/FeatureServer/0/query"
	DefaultCrashCSVURL       = "https://www.virginiaroads.org/api/download/v1/items/101101cecac34f28b38c0846e847bd0b/csv?layers=1"
	DefaultGrantsURLTemplate = "https://prod-grants-gov-chatbot.s3.amazonaws.com/extracts/GrantsDBExtract{date}v2.zip"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	OutputDir       string

	ScheduleEnabled bool
	Schedule        scheduler.Weekly

	// Upstream request bounds.
	RequestTimeoutShort time.Duration
	RequestTimeoutLong  time.Duration
	RequestTimeoutBulk  time.Duration
	UpstreamRateLimit   float64

	// Crash pipeline.
	CrashAPIURL          string
	CrashCSVURL          string
	CrashPageSize        int
	CrashJurisCode       string
	CrashFIPS            string
	CrashNamePatterns    []string
	CrashOwnershipMarker string

	// Grants pipeline.
	GrantsURLTemplate      string
	GrantsLookbackDays     int
	GrantsActiveWindowDays int

	// Run notifications. Empty KafkaBrokers disables them.
	KafkaBrokers []string
	KafkaTopic   string

	// Output publishing. Empty ObjectStoreEndpoint disables it.
	ObjectStoreEndpoint  string
	ObjectStoreBucket    string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreUseSSL    bool
	ObjectStorePrefix    string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	schedule, err := scheduler.ParseWeekly(
		sharedcfg.EnvOrDefault("SCHEDULE_WEEKDAY", "monday"),
		sharedcfg.EnvOrDefault("SCHEDULE_TIME", "06:00"),
		sharedcfg.EnvOrDefault("SCHEDULE_TZ", "Local"),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_WEEKDAY/SCHEDULE_TIME/SCHEDULE_TZ: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "data"),
		Schedule:        schedule,

		CrashAPIURL:          sharedcfg.EnvOrDefault("CRASH_API_URL", DefaultCrashAPIURL),
		CrashCSVURL:          os.Getenv("CRASH_CSV_URL"),
		CrashJurisCode:       sharedcfg.EnvOrDefault("CRASH_JURIS_CODE", "43"),
		CrashFIPS:            sharedcfg.EnvOrDefault("CRASH_FIPS", "087"),
		CrashNamePatterns:    splitList(sharedcfg.EnvOrDefault("CRASH_NAME_PATTERNS", "HENRICO,043. Henrico County")),
		CrashOwnershipMarker: sharedcfg.EnvOrDefault("CRASH_OWNERSHIP_MARKER", "NonVDOT"),

		GrantsURLTemplate: sharedcfg.EnvOrDefault("GRANTS_URL_TEMPLATE", DefaultGrantsURLTemplate),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "civic-data-refreshed"),

		ObjectStoreEndpoint:  os.Getenv("OBJECT_STORE_ENDPOINT"),
		ObjectStoreBucket:    sharedcfg.EnvOrDefault("OBJECT_STORE_BUCKET", "civic-data"),
		ObjectStoreAccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		ObjectStoreSecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
		ObjectStorePrefix:    os.Getenv("OBJECT_STORE_PREFIX"),
	}

	// HTTP_ADDR set to the empty string disables the health server.
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTPAddr = ":8080"
	}
	if _, set := os.LookupEnv("CRASH_CSV_URL"); !set {
		cfg.CrashCSVURL = DefaultCrashCSVURL
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(brokers) != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.ScheduleEnabled, err = parseBool("SCHEDULE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.ObjectStoreUseSSL, err = parseBool("OBJECT_STORE_USE_SSL", true); err != nil {
		return nil, err
	}
	if cfg.RequestTimeoutShort, err = parseDuration("REQUEST_TIMEOUT_SHORT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeoutLong, err = parseDuration("REQUEST_TIMEOUT_LONG", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeoutBulk, err = parseDuration("REQUEST_TIMEOUT_BULK", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.UpstreamRateLimit, err = parseRate("UPSTREAM_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.CrashPageSize, err = parsePositiveInt("CRASH_PAGE_SIZE", 2000); err != nil {
		return nil, err
	}
	if cfg.GrantsLookbackDays, err = parsePositiveInt("GRANTS_LOOKBACK_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.GrantsActiveWindowDays, err = parsePositiveInt("GRANTS_ACTIVE_WINDOW_DAYS", 30); err != nil {
		return nil, err
	}

	if cfg.CrashAPIURL == "" && cfg.CrashCSVURL == "" {
		return nil, errors.New("one of CRASH_API_URL or CRASH_CSV_URL is required")
	}
	if cfg.CrashJurisCode == "" && cfg.CrashFIPS == "" && len(cfg.CrashNamePatterns) == 0 {
		return nil, errors.New("one of CRASH_JURIS_CODE, CRASH_FIPS or CRASH_NAME_PATTERNS is required")
	}
	if !strings.Contains(cfg.GrantsURLTemplate, "{date}") {
		return nil, errors.New("GRANTS_URL_TEMPLATE must contain {date}")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.ObjectStoreEndpoint != "" && cfg.ObjectStoreBucket == "" {
		return nil, errors.New("OBJECT_STORE_BUCKET is required when OBJECT_STORE_ENDPOINT is set")
	}

	return cfg, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseRate reads requests per second. Zero disables pacing.
func parseRate(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
