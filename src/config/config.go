package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ConfigPathEnvVar = "SCREEN_QR_SCAN"
	ScanModeEnvVar   = "SCAN_MODE"
	ScanModeOneShot  = "oneshot"
	ScanModeContinue = "continuous"
	DefaultHotkey    = "Ctrl+Alt+Q"

	defaultCaptureTimeoutMs = 2000
	defaultPollIntervalMs   = 100
	defaultResidentPort     = 49500
	defaultResidentPortEnd  = 49550
)

type LoadOptions struct {
	ScanModeOverride string
}

type Config struct {
	Hotkey            string
	ScanMode          string
	ArmOnStart        bool
	CaptureTimeout    time.Duration
	DecodeTryHarder   bool
	OpenPayloads      bool
	OpenSchemes       []string
	CopyToClipboard   bool
	DebugSaveImages   bool
	DebugImageDir     string
	PollInterval      time.Duration
	EnableFileLogging bool
	// ResidentPortStart..ResidentPortEnd is the loopback range scanned by
	// run-once clients; the resident binds the first port only.
	ResidentPortStart int
	ResidentPortEnd   int
}

// Continuous reports whether the scanner stays armed after each result.
func (c *Config) Continuous() bool { return c.ScanMode == ScanModeContinue }

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) the file named by SCREEN_QR_SCAN
	// 3) plain process environment
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		ScanMode:          resolveScanModeValue(opts),
		ArmOnStart:        getBool("ARM_ON_START", false),
		CaptureTimeout:    getMillis("CAPTURE_TIMEOUT_MS", defaultCaptureTimeoutMs),
		DecodeTryHarder:   getBool("DECODE_TRY_HARDER", true),
		OpenPayloads:      getBool("OPEN_PAYLOADS", true),
		OpenSchemes:       splitList(getEnvWithDefault("OPEN_SCHEMES", "http,https")),
		CopyToClipboard:   getBool("COPY_TO_CLIPBOARD", true),
		DebugSaveImages:   getBool("DEBUG_SAVE_IMAGES", false),
		DebugImageDir:     getEnvWithDefault("DEBUG_IMAGE_DIR", "."),
		PollInterval:      getMillis("POLL_INTERVAL_MS", defaultPollIntervalMs),
		EnableFileLogging: getBool("ENABLE_FILE_LOGGING", false),
	}
	cfg.ResidentPortStart, cfg.ResidentPortEnd = getPortRange()

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// getMillis reads a positive millisecond count; anything else falls back to the default.
func getMillis(key string, defaultMs int) time.Duration {
	ms := defaultMs
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			ms = n
		}
	}
	return time.Duration(ms) * time.Millisecond
}

// getPortRange reads SINGLEINSTANCE_PORT_START/END, clamped to [1024, 65535].
func getPortRange() (int, int) {
	start := defaultResidentPort
	end := defaultResidentPortEnd
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SINGLEINSTANCE_PORT_START"))); err == nil {
		start = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SINGLEINSTANCE_PORT_END"))); err == nil {
		end = n
	}
	if end < start {
		start, end = end, start
	}
	return clampPort(start), clampPort(end)
}

func clampPort(p int) int {
	if p < 1024 {
		return 1024
	}
	if p > 65535 {
		return 65535
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolveScanMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ScanModeContinue, "continue", "multi":
		return ScanModeContinue
	default:
		return ScanModeOneShot
	}
}

func resolveScanModeValue(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.ScanModeOverride); override != "" {
		return resolveScanMode(override)
	}
	return resolveScanMode(os.Getenv(ScanModeEnvVar))
}
