// Package app holds the gateway's environment-sourced configuration.
// Grounded on the teacher's internal/app/config.go: a flat Config struct
// populated once by LoadConfig using the same getEnv/getEnvInt64 helpers,
// no validation framework, no config file support.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the gateway's full process configuration, assembled from
// spec.md §6's environment table plus SPEC_FULL.md §6's additions.
type Config struct {
	HTTPAddr string // HTTP_ADDR

	StoreURI      string // STORE_URI (falls back to SQLITE_DB_PATH if unset)
	StoreDatabase string // STORE_DATABASE

	CookieSecure bool // COOKIE_SECURE

	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT

	PublicSeedDuration         time.Duration // PUBLIC_SEED_DURATION (seconds)
	PrivateSeedDuration        time.Duration // PRIVATE_SEED_DURATION (seconds)
	AutoPauseSeeding           bool          // AUTO_PAUSE_SEEDING
	MaintenanceIntervalSeconds time.Duration // MAINTENANCE_INTERVAL_SECONDS
	StatusRetentionDays        int           // STATUS_RETENTION_DAYS

	StreamIdleSeconds time.Duration // STREAM_IDLE_SECONDS
	CallbackDir       string        // CALLBACK_DIR

	OtelExporterOTLPEndpoint string  // OTEL_EXPORTER_OTLP_ENDPOINT
	OtelTraceSampleRate      float64 // OTEL_TRACE_SAMPLE_RATE

	HLSDir          string // HLS_DIR
	HLSPreset       string // HLS_PRESET
	HLSCRF          int    // HLS_CRF
	HLSAudioBitrate string // HLS_AUDIO_BITRATE
	FFMPEGPath      string // FFMPEG_PATH
	FFProbePath     string // FFPROBE_PATH

	CORSAllowedOrigins []string // CORS_ALLOWED_ORIGINS, empty = allow all (dev mode)

	BCryptCost int // BCRYPT_COST

	DispatchDeadlineSeconds time.Duration // DISPATCH_DEADLINE_SECONDS
}

// LoadConfig reads every environment variable the gateway recognizes,
// falling back to spec.md's literal defaults when unset.
func LoadConfig() Config {
	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		StoreURI:      getEnv("STORE_URI", getEnv("SQLITE_DB_PATH", "mongodb://localhost:27017")),
		StoreDatabase: getEnv("STORE_DATABASE", "torrent_gateway"),

		CookieSecure: getEnvBool("COOKIE_SECURE", true),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		PublicSeedDuration:         time.Duration(getEnvInt64("PUBLIC_SEED_DURATION", 24*3600)) * time.Second,
		PrivateSeedDuration:        time.Duration(getEnvInt64("PRIVATE_SEED_DURATION", 7*24*3600)) * time.Second,
		AutoPauseSeeding:           getEnvBool("AUTO_PAUSE_SEEDING", true),
		MaintenanceIntervalSeconds: time.Duration(getEnvInt64("MAINTENANCE_INTERVAL_SECONDS", 300)) * time.Second,
		StatusRetentionDays:        int(getEnvInt64("STATUS_RETENTION_DAYS", 30)),

		StreamIdleSeconds: time.Duration(getEnvInt64("STREAM_IDLE_SECONDS", 600)) * time.Second,
		CallbackDir:       getEnv("CALLBACK_DIR", ""),

		OtelExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelTraceSampleRate:      getEnvFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),

		HLSDir:          getEnv("HLS_DIR", "/tmp/gateway-hls"),
		HLSPreset:       getEnv("HLS_PRESET", "veryfast"),
		HLSCRF:          int(getEnvInt64("HLS_CRF", 23)),
		HLSAudioBitrate: getEnv("HLS_AUDIO_BITRATE", "128k"),
		FFMPEGPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath:     getEnv("FFPROBE_PATH", "ffprobe"),

		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		BCryptCost: int(getEnvInt64("BCRYPT_COST", 12)),

		DispatchDeadlineSeconds: time.Duration(getEnvInt64("DISPATCH_DEADLINE_SECONDS", 10)) * time.Second,
	}
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return fallback
	}
	return parsed
}
