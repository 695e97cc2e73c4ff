package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "sclang", cfg.Interpreter.ExecutablePath)
	require.Equal(t, "CmdPeriod.run;", cfg.Interpreter.InterruptDirective)
	require.Equal(t, "0.exit;", cfg.Interpreter.QuitDirective)
	require.Equal(t, PlacementBelow, cfg.UI.Placement())
	require.False(t, cfg.Tracing.Enabled)
	require.NoError(t, Validate(cfg))
}

func TestParsePlacement(t *testing.T) {
	tests := []struct {
		in      string
		want    Placement
		wantErr bool
	}{
		{in: "beside", want: PlacementBeside},
		{in: "below", want: PlacementBelow},
		{in: " Beside ", want: PlacementBeside},
		{in: "", want: PlacementBelow},
		{in: "above", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlacement(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPlacement_Toggle(t *testing.T) {
	require.Equal(t, PlacementBelow, PlacementBeside.Toggle())
	require.Equal(t, PlacementBeside, PlacementBelow.Toggle())
}

func TestUIConfig_PlacementFallsBackOnInvalid(t *testing.T) {
	require.Equal(t, PlacementBelow, UIConfig{PanelPlacement: "sideways"}.Placement())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty interrupt directive",
			mutate:  func(c *Config) { c.Interpreter.InterruptDirective = "  " },
			wantErr: "interrupt_directive is required",
		},
		{
			name:    "empty quit directive",
			mutate:  func(c *Config) { c.Interpreter.QuitDirective = "" },
			wantErr: "quit_directive is required",
		},
		{
			name:    "multi-line directive",
			mutate:  func(c *Config) { c.Interpreter.QuitDirective = "0.exit;\nfoo" },
			wantErr: "single line",
		},
		{
			name:    "bad placement",
			mutate:  func(c *Config) { c.UI.PanelPlacement = "above" },
			wantErr: "ui.panel_placement",
		},
		{
			name: "bad exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "zipkin"
			},
			wantErr: "unsupported exporter",
		},
		{
			name: "bad sample rate",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 2
			},
			wantErr: "sample_rate",
		},
		{
			name:   "empty executable is allowed",
			mutate: func(c *Config) { c.Interpreter.ExecutablePath = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfigTemplate_IsValidYAML(t *testing.T) {
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate()), &parsed))
	require.Contains(t, parsed, "interpreter")
	require.Contains(t, parsed, "ui")
}

func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	defaults := Defaults()
	require.Equal(t, defaults.Interpreter, cfg.Interpreter)
	require.Equal(t, defaults.UI, cfg.UI)
	require.Equal(t, defaults.Tracing.Exporter, cfg.Tracing.Exporter)
	require.Equal(t, defaults.Tracing.ServiceName, cfg.Tracing.ServiceName)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".replpane", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}
