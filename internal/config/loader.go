package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/stampede/internal/auth"
	"github.com/wesleyorama2/stampede/internal/performance"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultScenario            = scenario.NameBrowse
	DefaultPacingDuration      = "1s"
	DefaultTimeout             = 30 * time.Second
	DefaultMaxIdleConnsPerHost = 100
	DefaultUserAgent           = "stampede/1.0"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig loads a run file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses run file data.
//
// ${VAR} references are replaced with the environment value (empty if unset)
// before parsing. The format is determined by the extension of path and
// defaults to YAML.
func ParseConfig(data []byte, path string) (*RunFile, error) {
	var file RunFile
	data = expandEnv(data)

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &file, nil
}

func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
//
// An empty string is a zero duration.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ApplyDefaults fills in every optional field left empty.
func ApplyDefaults(file *RunFile) {
	if file.Scenario == "" {
		file.Scenario = DefaultScenario
	}
	if len(file.Endpoints) == 0 {
		file.Endpoints = scenario.DefaultEndpoints()
	}
	if file.LoginPath == "" {
		file.LoginPath = auth.DefaultLoginPath
	}
	if file.Pacing == nil {
		file.Pacing = &PacingConfig{Type: string(performance.PacingConstant), Duration: DefaultPacingDuration}
	} else if file.Pacing.Type == "" {
		file.Pacing.Type = string(performance.PacingConstant)
	}
	if file.GracePeriod == "" {
		file.GracePeriod = performance.DefaultGracePeriod.String()
	}
	if file.SetupTimeout == "" {
		file.SetupTimeout = performance.DefaultSetupTimeout.String()
	}

	if file.Settings.Timeout == 0 {
		file.Settings.Timeout = Duration(DefaultTimeout)
	}
	if file.Settings.MaxIdleConnsPerHost == 0 {
		file.Settings.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if file.Settings.UserAgent == "" {
		file.Settings.UserAgent = DefaultUserAgent
	}
}
