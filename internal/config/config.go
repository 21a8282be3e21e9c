package config

import (
	"os"
	"strconv"

	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Fit    curve.FitConfig
	Ingest IngestConfig
	Sample SampleConfig
	Server ServerConfig
	Export ExportConfig
}

// IngestConfig holds file-ingestion settings. A zero TenorMax disables the
// tenor window filter.
type IngestConfig struct {
	TenorMin float64
	TenorMax float64
}

// SampleConfig holds synthetic sample generation settings
type SampleConfig struct {
	Count    int
	Seed     int64
	TenorMin float64
	TenorMax float64

	// Jump-diffusion outlier settings.
	JumpProbWide  float64
	JumpProbTight float64
	JumpKWide     float64
	JumpKTight    float64
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// ExportConfig holds optional export destinations (empty = disabled)
type ExportConfig struct {
	ResultsCSV    string
	CurveJSON     string
	WorkbookXLSX  string
	TopN          int
	CurveGridSize int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	fit := loadFitConfig()
	if err := fit.Validate(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "fit configuration validation failed")
	}

	ingest := loadIngestConfig()
	if ingest.TenorMax > 0 && !(ingest.TenorMax > ingest.TenorMin) {
		return nil, errors.ConfigInvalid("INGEST_TENOR_MAX must exceed INGEST_TENOR_MIN")
	}

	sample := loadSampleConfig()
	if sample.Count <= 0 {
		return nil, errors.ConfigInvalid("SAMPLE_COUNT must be > 0")
	}
	if !(sample.TenorMax > sample.TenorMin) {
		return nil, errors.ConfigInvalid("SAMPLE_TENOR_MAX must exceed SAMPLE_TENOR_MIN")
	}

	return &Config{
		Fit:    fit,
		Ingest: ingest,
		Sample: sample,
		Server: loadServerConfig(),
		Export: loadExportConfig(),
	}, nil
}

func loadIngestConfig() IngestConfig {
	return IngestConfig{
		TenorMin: getEnvFloatOrDefault("INGEST_TENOR_MIN", 0),
		TenorMax: getEnvFloatOrDefault("INGEST_TENOR_MAX", 0),
	}
}

func loadFitConfig() curve.FitConfig {
	cfg := curve.DefaultFitConfig()

	cfg.ModelSpec = curve.ModelSpec(getEnvOrDefault("MODEL_SPEC", string(cfg.ModelSpec)))
	cfg.TauMin = getEnvFloatOrDefault("TAU_MIN", cfg.TauMin)
	cfg.TauMax = getEnvFloatOrDefault("TAU_MAX", cfg.TauMax)
	cfg.TauStepsNS = getEnvIntOrDefault("TAU_STEPS_NS", cfg.TauStepsNS)
	cfg.TauStepsNSS = getEnvIntOrDefault("TAU_STEPS_NSS", cfg.TauStepsNSS)
	cfg.TauStepsNSSC = getEnvIntOrDefault("TAU_STEPS_NSSC", cfg.TauStepsNSSC)

	cfg.WeightMode = curve.WeightMode(getEnvOrDefault("WEIGHT_MODE", string(cfg.WeightMode)))

	cfg.FrontEndMode = curve.FrontEndMode(getEnvOrDefault("FRONT_END_MODE", string(cfg.FrontEndMode)))
	cfg.FrontEndValue = getEnvFloatOrDefault("FRONT_END_VALUE", cfg.FrontEndValue)
	cfg.FrontEndWindow = getEnvFloatOrDefault("FRONT_END_WINDOW", cfg.FrontEndWindow)

	cfg.ShortEndMonotone = curve.ShortEndMonotone(getEnvOrDefault("SHORT_END_MONOTONE", string(cfg.ShortEndMonotone)))
	cfg.ShortEndWindow = getEnvFloatOrDefault("SHORT_END_WINDOW", cfg.ShortEndWindow)

	cfg.Robust = curve.RobustKind(getEnvOrDefault("ROBUST", string(cfg.Robust)))
	cfg.RobustIters = getEnvIntOrDefault("ROBUST_ITERS", cfg.RobustIters)
	cfg.RobustK = getEnvFloatOrDefault("ROBUST_K", cfg.RobustK)

	cfg.Workers = getEnvIntOrDefault("FIT_WORKERS", cfg.Workers)
	return cfg
}

func loadSampleConfig() SampleConfig {
	return SampleConfig{
		Count:         getEnvIntOrDefault("SAMPLE_COUNT", 100),
		Seed:          int64(getEnvIntOrDefault("SAMPLE_SEED", 42)),
		TenorMin:      getEnvFloatOrDefault("SAMPLE_TENOR_MIN", 0.1),
		TenorMax:      getEnvFloatOrDefault("SAMPLE_TENOR_MAX", 30.0),
		JumpProbWide:  getEnvFloatOrDefault("JUMP_PROB_WIDE", 0.05),
		JumpProbTight: getEnvFloatOrDefault("JUMP_PROB_TIGHT", 0.05),
		JumpKWide:     getEnvFloatOrDefault("JUMP_K_WIDE", 2.5),
		JumpKTight:    getEnvFloatOrDefault("JUMP_K_TIGHT", 2.5),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadExportConfig() ExportConfig {
	return ExportConfig{
		ResultsCSV:    getEnvOrDefault("EXPORT_RESULTS_CSV", ""),
		CurveJSON:     getEnvOrDefault("EXPORT_CURVE_JSON", ""),
		WorkbookXLSX:  getEnvOrDefault("EXPORT_WORKBOOK_XLSX", ""),
		TopN:          getEnvIntOrDefault("REPORT_TOP_N", 10),
		CurveGridSize: getEnvIntOrDefault("EXPORT_CURVE_POINTS", 101),
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
