// Package config provides configuration types, defaults, and persistence for replpane.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/replpane/internal/log"
)

// Placement controls where the console panel is laid out relative to the
// editor.
type Placement string

const (
	PlacementBeside Placement = "beside"
	PlacementBelow  Placement = "below"
)

// ParsePlacement converts a config string into a Placement.
func ParsePlacement(s string) (Placement, error) {
	switch p := Placement(strings.ToLower(strings.TrimSpace(s))); p {
	case PlacementBeside, PlacementBelow:
		return p, nil
	case "":
		return PlacementBelow, nil
	default:
		return "", fmt.Errorf("invalid panel placement %q (expected %q or %q)", s, PlacementBeside, PlacementBelow)
	}
}

// Toggle returns the other placement.
func (p Placement) Toggle() Placement {
	if p == PlacementBeside {
		return PlacementBelow
	}
	return PlacementBeside
}

// Config holds all configuration options for replpane.
type Config struct {
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	UI          UIConfig          `mapstructure:"ui"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// InterpreterConfig describes the supervised interpreter.
type InterpreterConfig struct {
	// ExecutablePath is spawned verbatim with no arguments.
	ExecutablePath string `mapstructure:"executable_path"`
	// InterruptDirective is written first on stop to abort in-flight evaluation.
	InterruptDirective string `mapstructure:"interrupt_directive"`
	// QuitDirective is written second on stop to request a graceful exit.
	QuitDirective string `mapstructure:"quit_directive"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	PanelPlacement string `mapstructure:"panel_placement"` // "beside" or "below" (default)
}

// Placement returns the parsed panel placement, falling back to below.
func (u UIConfig) Placement() Placement {
	p, err := ParsePlacement(u.PanelPlacement)
	if err != nil {
		return PlacementBelow
	}
	return p
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // none, file, stdout, otlp
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// Default directive values target SuperCollider's sclang.
const (
	DefaultExecutable         = "sclang"
	DefaultInterruptDirective = "CmdPeriod.run;"
	DefaultQuitDirective      = "0.exit;"
)

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Interpreter: InterpreterConfig{
			ExecutablePath:     DefaultExecutable,
			InterruptDirective: DefaultInterruptDirective,
			QuitDirective:      DefaultQuitDirective,
		},
		UI: UIConfig{
			PanelPlacement: string(PlacementBelow),
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "replpane",
		},
	}
}

// Validate checks cfg for values that can never work.
// The executable path is not checked here: a bad path surfaces as a spawn
// failure when the interpreter is started.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Interpreter.InterruptDirective) == "" {
		return fmt.Errorf("interpreter.interrupt_directive is required")
	}
	if strings.TrimSpace(cfg.Interpreter.QuitDirective) == "" {
		return fmt.Errorf("interpreter.quit_directive is required")
	}
	if strings.ContainsAny(cfg.Interpreter.InterruptDirective+cfg.Interpreter.QuitDirective, "\r\n") {
		return fmt.Errorf("interpreter directives must be a single line")
	}
	if _, err := ParsePlacement(cfg.UI.PanelPlacement); err != nil {
		return fmt.Errorf("ui.panel_placement: %w", err)
	}
	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "", "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter: unsupported exporter %q", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
		}
	}
	return nil
}

// defaultConfigTemplate is the commented YAML written on first run.
//
//go:embed default_config.yaml
var defaultConfigTemplate string

// DefaultConfigTemplate returns the commented YAML written on first run.
func DefaultConfigTemplate() string {
	return defaultConfigTemplate
}

// WriteDefaultConfig creates a config file with default settings.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
