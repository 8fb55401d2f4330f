package console

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListLimit    = 10
	defaultFetchTimeout = 5 * time.Second
	defaultExportMax    = 5000
	defaultCapsTTL      = 8 * time.Hour
)

var defaultAllowedLimits = []int{10, 25, 50, 100}

// Config holds runtime configuration for the console module.
type Config struct {
	DefaultLimit  int
	AllowedLimits []int
	FetchTimeout  time.Duration
	ExportMaxRows int
	CapsTTL       time.Duration
}

// LoadConfig reads console configuration from environment variables and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		DefaultLimit:  defaultListLimit,
		AllowedLimits: append([]int(nil), defaultAllowedLimits...),
		FetchTimeout:  defaultFetchTimeout,
		ExportMaxRows: defaultExportMax,
		CapsTTL:       defaultCapsTTL,
	}

	if v, err := readIntEnv("CONSOLE_DEFAULT_LIMIT"); err != nil {
		return Config{}, fmt.Errorf("parse CONSOLE_DEFAULT_LIMIT: %w", err)
	} else if v != nil {
		cfg.DefaultLimit = *v
	}

	if v := os.Getenv("CONSOLE_ALLOWED_LIMITS"); strings.TrimSpace(v) != "" {
		limits, err := parseIntList(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CONSOLE_ALLOWED_LIMITS: %w", err)
		}
		cfg.AllowedLimits = limits
	}

	if v := os.Getenv("CONSOLE_FETCH_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CONSOLE_FETCH_TIMEOUT_SECONDS: %w", err)
		}
		cfg.FetchTimeout = time.Duration(secs) * time.Second
	}

	if v, err := readIntEnv("CONSOLE_EXPORT_MAX_ROWS"); err != nil {
		return Config{}, fmt.Errorf("parse CONSOLE_EXPORT_MAX_ROWS: %w", err)
	} else if v != nil {
		cfg.ExportMaxRows = *v
	}

	if v := os.Getenv("CONSOLE_CAPS_TTL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse CONSOLE_CAPS_TTL_SECONDS: %w", err)
		}
		cfg.CapsTTL = time.Duration(secs) * time.Second
	}

	if cfg.DefaultLimit <= 0 {
		return Config{}, fmt.Errorf("CONSOLE_DEFAULT_LIMIT must be positive")
	}
	if !containsInt(cfg.AllowedLimits, cfg.DefaultLimit) {
		return Config{}, fmt.Errorf("CONSOLE_DEFAULT_LIMIT must be one of CONSOLE_ALLOWED_LIMITS")
	}
	if cfg.FetchTimeout <= 0 {
		return Config{}, fmt.Errorf("CONSOLE_FETCH_TIMEOUT_SECONDS must be positive")
	}
	if cfg.ExportMaxRows <= 0 {
		return Config{}, fmt.Errorf("CONSOLE_EXPORT_MAX_ROWS must be positive")
	}
	if cfg.CapsTTL < 0 {
		return Config{}, fmt.Errorf("CONSOLE_CAPS_TTL_SECONDS must not be negative")
	}

	return cfg, nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("limit %d must be positive", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
