package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveSetting_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveSetting(configPath, "ui.panel_placement", "beside"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ui:")
	assert.Contains(t, string(data), "panel_placement: beside")
}

func TestSaveSetting_PreservesOtherConfigAndComments(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	require.NoError(t, SaveSetting(configPath, "ui.panel_placement", "beside"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# Interpreter process")
	assert.Contains(t, content, "executable_path: sclang")
	assert.Contains(t, content, "panel_placement: beside")
	assert.NotContains(t, content, "panel_placement: below")

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())
	require.Equal(t, "beside", v.GetString("ui.panel_placement"))
	require.Equal(t, "0.exit;", v.GetString("interpreter.quit_directive"))
}

func TestSaveSetting_QuotesAmbiguousValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveSetting(configPath, "interpreter.executable_path", "true"))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, "true", cfg.Interpreter.ExecutablePath)
}

func TestSaveSetting_ReplacesScalarParent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("ui: compact\n"), 0o600))

	require.NoError(t, SaveSetting(configPath, "ui.panel_placement", "below"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panel_placement: below")
}

func TestSaveSetting_InvalidKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.Error(t, SaveSetting(configPath, "ui..placement", "x"))
}

func TestSaveSetting_InvalidExistingYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("ui: [unterminated\n"), 0o600))

	err := SaveSetting(configPath, "ui.panel_placement", "below")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing config")
}
