package app

import (
	"os"
	"testing"
	"time"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func clearEnvs(t *testing.T, keys []string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var allEnvKeys = []string{
	"HTTP_ADDR", "STORE_URI", "SQLITE_DB_PATH", "STORE_DATABASE",
	"COOKIE_SECURE", "LOG_LEVEL", "LOG_FORMAT",
	"PUBLIC_SEED_DURATION", "PRIVATE_SEED_DURATION", "AUTO_PAUSE_SEEDING",
	"MAINTENANCE_INTERVAL_SECONDS", "STATUS_RETENTION_DAYS",
	"STREAM_IDLE_SECONDS", "CALLBACK_DIR",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_TRACE_SAMPLE_RATE",
	"HLS_DIR", "HLS_PRESET", "HLS_CRF", "HLS_AUDIO_BITRATE",
	"FFMPEG_PATH", "FFPROBE_PATH", "CORS_ALLOWED_ORIGINS",
	"BCRYPT_COST", "DISPATCH_DEADLINE_SECONDS",
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnvs(t, allEnvKeys)

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8080"},
		{"StoreURI", cfg.StoreURI, "mongodb://localhost:27017"},
		{"StoreDatabase", cfg.StoreDatabase, "torrent_gateway"},
		{"CookieSecure", cfg.CookieSecure, true},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"PublicSeedDuration", cfg.PublicSeedDuration, 24 * time.Hour},
		{"PrivateSeedDuration", cfg.PrivateSeedDuration, 7 * 24 * time.Hour},
		{"AutoPauseSeeding", cfg.AutoPauseSeeding, true},
		{"MaintenanceIntervalSeconds", cfg.MaintenanceIntervalSeconds, 300 * time.Second},
		{"StatusRetentionDays", cfg.StatusRetentionDays, 30},
		{"StreamIdleSeconds", cfg.StreamIdleSeconds, 600 * time.Second},
		{"CallbackDir", cfg.CallbackDir, ""},
		{"OtelExporterOTLPEndpoint", cfg.OtelExporterOTLPEndpoint, ""},
		{"OtelTraceSampleRate", cfg.OtelTraceSampleRate, 0.1},
		{"HLSDir", cfg.HLSDir, "/tmp/gateway-hls"},
		{"HLSPreset", cfg.HLSPreset, "veryfast"},
		{"HLSCRF", cfg.HLSCRF, 23},
		{"HLSAudioBitrate", cfg.HLSAudioBitrate, "128k"},
		{"FFMPEGPath", cfg.FFMPEGPath, "ffmpeg"},
		{"FFProbePath", cfg.FFProbePath, "ffprobe"},
		{"BCryptCost", cfg.BCryptCost, 12},
		{"DispatchDeadlineSeconds", cfg.DispatchDeadlineSeconds, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins: got %v, want nil/empty", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigStoreURIFallsBackToSQLiteDBPath(t *testing.T) {
	clearEnvs(t, allEnvKeys)
	t.Setenv("SQLITE_DB_PATH", "mongodb://legacy-alias:27017")

	cfg := LoadConfig()
	if cfg.StoreURI != "mongodb://legacy-alias:27017" {
		t.Errorf("StoreURI = %q, want the SQLITE_DB_PATH fallback value", cfg.StoreURI)
	}
}

func TestLoadConfigStoreURITakesPrecedenceOverFallback(t *testing.T) {
	clearEnvs(t, allEnvKeys)
	setEnvs(t, map[string]string{
		"STORE_URI":      "mongodb://primary:27017",
		"SQLITE_DB_PATH": "mongodb://legacy-alias:27017",
	})

	cfg := LoadConfig()
	if cfg.StoreURI != "mongodb://primary:27017" {
		t.Errorf("StoreURI = %q, want STORE_URI to win over SQLITE_DB_PATH", cfg.StoreURI)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"HTTP_ADDR":                     ":9090",
		"STORE_URI":                     "mongodb://remote:27017",
		"STORE_DATABASE":                "mydb",
		"COOKIE_SECURE":                 "false",
		"LOG_LEVEL":                     "DEBUG",
		"LOG_FORMAT":                    "JSON",
		"PUBLIC_SEED_DURATION":          "3600",
		"PRIVATE_SEED_DURATION":         "7200",
		"AUTO_PAUSE_SEEDING":            "false",
		"MAINTENANCE_INTERVAL_SECONDS":  "60",
		"STATUS_RETENTION_DAYS":         "14",
		"STREAM_IDLE_SECONDS":           "120",
		"CALLBACK_DIR":                  "/var/hooks",
		"OTEL_EXPORTER_OTLP_ENDPOINT":   "otel-collector:4318",
		"OTEL_TRACE_SAMPLE_RATE":        "0.5",
		"HLS_DIR":                       "/tmp/hls",
		"HLS_PRESET":                    "medium",
		"HLS_CRF":                       "18",
		"HLS_AUDIO_BITRATE":             "256k",
		"FFMPEG_PATH":                   "/usr/bin/ffmpeg",
		"FFPROBE_PATH":                  "/usr/bin/ffprobe",
		"CORS_ALLOWED_ORIGINS":          "http://localhost:3000, https://example.com",
		"BCRYPT_COST":                   "10",
		"DISPATCH_DEADLINE_SECONDS":     "5",
	})

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":9090"},
		{"StoreURI", cfg.StoreURI, "mongodb://remote:27017"},
		{"StoreDatabase", cfg.StoreDatabase, "mydb"},
		{"CookieSecure", cfg.CookieSecure, false},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"PublicSeedDuration", cfg.PublicSeedDuration, time.Hour},
		{"PrivateSeedDuration", cfg.PrivateSeedDuration, 2 * time.Hour},
		{"AutoPauseSeeding", cfg.AutoPauseSeeding, false},
		{"MaintenanceIntervalSeconds", cfg.MaintenanceIntervalSeconds, time.Minute},
		{"StatusRetentionDays", cfg.StatusRetentionDays, 14},
		{"StreamIdleSeconds", cfg.StreamIdleSeconds, 120 * time.Second},
		{"CallbackDir", cfg.CallbackDir, "/var/hooks"},
		{"OtelExporterOTLPEndpoint", cfg.OtelExporterOTLPEndpoint, "otel-collector:4318"},
		{"OtelTraceSampleRate", cfg.OtelTraceSampleRate, 0.5},
		{"HLSDir", cfg.HLSDir, "/tmp/hls"},
		{"HLSPreset", cfg.HLSPreset, "medium"},
		{"HLSCRF", cfg.HLSCRF, 18},
		{"HLSAudioBitrate", cfg.HLSAudioBitrate, "256k"},
		{"FFMPEGPath", cfg.FFMPEGPath, "/usr/bin/ffmpeg"},
		{"FFProbePath", cfg.FFProbePath, "/usr/bin/ffprobe"},
		{"BCryptCost", cfg.BCryptCost, 10},
		{"DispatchDeadlineSeconds", cfg.DispatchDeadlineSeconds, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	wantOrigins := []string{"http://localhost:3000", "https://example.com"}
	if len(cfg.CORSAllowedOrigins) != len(wantOrigins) {
		t.Fatalf("CORSAllowedOrigins: got %d entries, want %d", len(cfg.CORSAllowedOrigins), len(wantOrigins))
	}
	for i, got := range cfg.CORSAllowedOrigins {
		if got != wantOrigins[i] {
			t.Errorf("CORSAllowedOrigins[%d]: got %q, want %q", i, got, wantOrigins[i])
		}
	}
}

func TestGetEnvInt64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int64
		want     int64
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero", "0", 42, 0},
		{"valid positive", "100", 42, 100},
		{"whitespace around number", "  50  ", 42, 50},
		{"float", "3.14", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt64("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvBoolInvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback bool
		want     bool
	}{
		{"empty string", "", true, true},
		{"not a bool", "nope", true, true},
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envVal)
			got := getEnvBool("TEST_BOOL_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvFloatInvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback float64
		want     float64
	}{
		{"empty string", "", 0.1, 0.1},
		{"not a float", "abc", 0.1, 0.1},
		{"out of range high", "1.5", 0.1, 0.1},
		{"out of range low", "-0.5", 0.1, 0.1},
		{"valid", "0.25", 0.1, 0.25},
		{"boundary zero", "0", 0.1, 0},
		{"boundary one", "1", 0.1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT_VAR", tt.envVal)
			got := getEnvFloat("TEST_FLOAT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvFloat(%q, %v) = %v, want %v", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"values with spaces", " a , b , c ", []string{"a", "b", "c"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
		{"empty entries filtered", "a,,b,,c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCSV(tt.input)
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseCSV(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCSV(%q) returned %d elements, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("TEST_EXISTING", "hello")

	if got := getEnv("TEST_EXISTING", "default"); got != "hello" {
		t.Errorf("getEnv(existing) = %q, want %q", got, "hello")
	}

	t.Setenv("TEST_MISSING_XYZ", "")
	os.Unsetenv("TEST_MISSING_XYZ")
	if got := getEnv("TEST_MISSING_XYZ", "default"); got != "default" {
		t.Errorf("getEnv(missing) = %q, want %q", got, "default")
	}
}

func TestLogLevelCaseInsensitive(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	cfg := LoadConfig()
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "debug")
	}

	t.Setenv("LOG_LEVEL", "Warn")
	cfg = LoadConfig()
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "warn")
	}
}
