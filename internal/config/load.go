package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/zjrosen/replpane/internal/log"
)

// SetDefaults registers every default with v so that keys absent from the
// file still unmarshal to their default values.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("interpreter.executable_path", d.Interpreter.ExecutablePath)
	v.SetDefault("interpreter.interrupt_directive", d.Interpreter.InterruptDirective)
	v.SetDefault("interpreter.quit_directive", d.Interpreter.QuitDirective)
	v.SetDefault("ui.panel_placement", d.UI.PanelPlacement)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Reload re-reads v's config file and installs the result in store.
// On any error the store keeps its previous snapshot.
func Reload(v *viper.Viper, store *Store) error {
	if err := v.ReadInConfig(); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to re-read config", err, "path", v.ConfigFileUsed())
		return fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Load(v)
	if err != nil {
		log.ErrorErr(log.CatConfig, "Rejected reloaded config", err, "path", v.ConfigFileUsed())
		return err
	}
	store.Replace(cfg)
	log.Info(log.CatConfig, "Config reloaded", "path", v.ConfigFileUsed(), "executable", cfg.Interpreter.ExecutablePath)
	return nil
}
