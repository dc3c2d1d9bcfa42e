package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings, populated from defaults, an optional
// config.yaml and environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Input files, looked up in each of DataDirs in order.
	DataDirs      []string
	IPRESSFile    string
	IPRESSSheet   string
	DistrictsFile string
	CCPPFile      string

	BufferMeters           float64
	HospitalClassification string
	MarkerLimit            int
	CacheTTL               time.Duration
	LoadRetry              time.Duration
	ProximityDepartments   []string

	// Optional export of district counts.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

var defaults = map[string]any{
	"http_addr":               ":8080",
	"log_level":               "info",
	"log_format":              "json",
	"shutdown_timeout":        "10s",
	"data_dirs":               "../data,data",
	"ipress_file":             "IPRESS.xlsx",
	"ipress_sheet":            "",
	"districts_file":          "v_distritos_2023.shp",
	"ccpp_file":               "CCPP_IGN100K.shp",
	"buffer_meters":           "10000",
	"hospital_classification": "HOSPITAL",
	"marker_limit":            "500",
	"cache_ttl":               "30m",
	"load_retry":              "30s",
	"proximity_departments":   "LIMA,LORETO",
	"kafka_enabled":           "false",
	"kafka_brokers":           "localhost:9092",
	"kafka_topic":             "ipress-district-counts",
}

// Load reads configuration, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// HTTP_ADDR -> http_addr
	v.AutomaticEnv()

	shutdownTimeout, err := parsePositiveDuration(v, "shutdown_timeout")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration(v, "cache_ttl")
	if err != nil {
		return nil, err
	}
	loadRetry, err := parsePositiveDuration(v, "load_retry")
	if err != nil {
		return nil, err
	}

	buffer, err := strconv.ParseFloat(strings.TrimSpace(v.GetString("buffer_meters")), 64)
	if err != nil || buffer <= 0 {
		return nil, errors.New("invalid BUFFER_METERS: must be a positive number of metres")
	}

	markerLimit, err := strconv.Atoi(strings.TrimSpace(v.GetString("marker_limit")))
	if err != nil || markerLimit <= 0 {
		return nil, errors.New("invalid MARKER_LIMIT: must be a positive integer")
	}

	kafkaEnabled, err := strconv.ParseBool(strings.TrimSpace(v.GetString("kafka_enabled")))
	if err != nil {
		return nil, errors.New("invalid KAFKA_ENABLED: must be true or false")
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("http_addr"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		ShutdownTimeout: shutdownTimeout,

		DataDirs:      splitList(v.GetString("data_dirs")),
		IPRESSFile:    strings.TrimSpace(v.GetString("ipress_file")),
		IPRESSSheet:   strings.TrimSpace(v.GetString("ipress_sheet")),
		DistrictsFile: strings.TrimSpace(v.GetString("districts_file")),
		CCPPFile:      strings.TrimSpace(v.GetString("ccpp_file")),

		BufferMeters:           buffer,
		HospitalClassification: strings.TrimSpace(v.GetString("hospital_classification")),
		MarkerLimit:            markerLimit,
		CacheTTL:               cacheTTL,
		LoadRetry:              loadRetry,
		ProximityDepartments:   splitList(v.GetString("proximity_departments")),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: splitList(v.GetString("kafka_brokers")),
		KafkaTopic:   strings.TrimSpace(v.GetString("kafka_topic")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if len(c.DataDirs) == 0 {
		errs = append(errs, "DATA_DIRS is required")
	}
	if c.IPRESSFile == "" {
		errs = append(errs, "IPRESS_FILE is required")
	}
	if c.DistrictsFile == "" {
		errs = append(errs, "DISTRICTS_FILE is required")
	}
	if c.CCPPFile == "" {
		errs = append(errs, "CCPP_FILE is required")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, "KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			errs = append(errs, "KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func parsePositiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	env := strings.ToUpper(key)
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", env)
	}
	return d, nil
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
