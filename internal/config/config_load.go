package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.expandPaths()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("AIDE_WORKSPACE", &c.Security.Workspace)
	envStr("AIDE_DATA_DIR", &c.Security.DataDir)
	envStr("AIDE_HEARTBEAT_DELIVER_TO", &c.Heartbeat.DeliverTo)
	envStr("AIDE_HEARTBEAT_ACTIVE_HOURS", &c.Heartbeat.ActiveHours)

	if v := os.Getenv("AIDE_HEARTBEAT_ENABLED"); v != "" {
		c.Heartbeat.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AIDE_HEARTBEAT_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Heartbeat.IntervalMinutes = n
		}
	}
	if v := os.Getenv("AIDE_MAX_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Gateway.MaxQueueSize = n
		}
	}
}

// expandPaths home-expands and absolutizes the filesystem roots.
func (c *Config) expandPaths() {
	c.Security.Workspace = absolutize(ExpandHome(c.Security.Workspace))
	c.Security.DataDir = absolutize(ExpandHome(c.Security.DataDir))
	for i, d := range c.Security.AdditionalReadDirs {
		c.Security.AdditionalReadDirs[i] = absolutize(ExpandHome(d))
	}
	for i, d := range c.Security.AdditionalWriteDirs {
		c.Security.AdditionalWriteDirs[i] = absolutize(ExpandHome(d))
	}
}

func absolutize(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Validate checks cross-field constraints against the set of registered
// adapter names. Heartbeat delivery must name "last" or a known adapter.
func (c *Config) Validate(registeredAdapters []string) error {
	if c.Gateway.MaxQueueSize <= 0 {
		return fmt.Errorf("gateway.max_queue_size must be positive, got %d", c.Gateway.MaxQueueSize)
	}
	if _, _, err := ParseActiveHours(c.Heartbeat.ActiveHours); err != nil {
		return fmt.Errorf("heartbeat.active_hours: %w", err)
	}
	if c.Heartbeat.DeliverTo != "last" {
		found := false
		for _, name := range registeredAdapters {
			if name == c.Heartbeat.DeliverTo {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("heartbeat.deliver_to %q does not match any registered adapter (want \"last\" or one of %v)", c.Heartbeat.DeliverTo, registeredAdapters)
		}
	}
	return nil
}

// ParseActiveHours parses an "H-H" window ("8-21": start inclusive,
// end exclusive). Hours are 0..24.
func ParseActiveHours(s string) (start, end int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid active hours %q (want \"H-H\")", s)
	}
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start hour in %q", s)
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end hour in %q", s)
	}
	if start < 0 || start > 24 || end < 0 || end > 24 {
		return 0, 0, fmt.Errorf("hours out of range in %q", s)
	}
	return start, end, nil
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
