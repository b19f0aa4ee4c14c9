package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for config files.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrConfigInvalid  = errors.New("invalid config")
)

// Load returns the environment configuration overlaid with the YAML file at
// path. An empty path falls back to REPORT_CONFIG; with neither only the
// environment is used. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		path = os.Getenv("REPORT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Renderer.MaxConcurrent != 1 {
		return fmt.Errorf("%w: renderer.max_concurrent must be 1, LibreOffice cannot convert in parallel", ErrConfigInvalid)
	}
	if _, err := ParseColor(c.Compile.RedactColor); err != nil {
		return fmt.Errorf("%w: compile.redact_color: %v", ErrConfigInvalid, err)
	}
	switch c.Compile.LocatorSource {
	case "html", "stext":
	default:
		return fmt.Errorf("%w: compile.locator_source must be html or stext, got %q", ErrConfigInvalid, c.Compile.LocatorSource)
	}
	if c.Compile.MaxDepth < 0 || c.Compile.CropPadding < 0 || c.Compile.MarkerPadding < 0 {
		return fmt.Errorf("%w: negative compile limits", ErrConfigInvalid)
	}
	return nil
}

// ParseColor reads #rrggbb (or rrggbb) into RGB components in [0,1].
func ParseColor(s string) ([3]float64, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return [3]float64{}, fmt.Errorf("want #rrggbb, got %q", s)
	}
	var out [3]float64
	for i := range out {
		v, err := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if err != nil {
			return [3]float64{}, fmt.Errorf("want #rrggbb, got %q", s)
		}
		out[i] = float64(v) / 255
	}
	return out, nil
}
