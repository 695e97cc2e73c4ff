package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/replpane/internal/app"
	"github.com/zjrosen/replpane/internal/config"
	"github.com/zjrosen/replpane/internal/log"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const localConfigPath = ".replpane/config.yaml"

var (
	version        = "dev"
	cfgFile        string
	debugFlag      bool
	executableFlag string
	placementFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "replpane",
	Short: "Drive a long-running interpreter from a terminal editor",
	Long: `replpane supervises one interpreter process (sclang by default), streams
its stdout and stderr into a console panel and sends code from the editor to
its stdin.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runApp,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .replpane/config.yaml, then ~/.config/replpane/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&executableFlag, "executable", "e", "",
		"interpreter executable (overrides interpreter.executable_path)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write diagnostic logs (also REPLPANE_DEBUG)")
	rootCmd.Flags().StringVar(&placementFlag, "placement", "",
		`console placement: "beside" or "below" (overrides ui.panel_placement)`)
}

// loadConfig resolves the config file, creating a default one on first run,
// and returns the validated configuration together with the file it came
// from.
func loadConfig(v *viper.Viper, explicit string) (config.Config, string, error) {
	config.SetDefaults(v)
	v.SetEnvPrefix("REPLPANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config lookup order:
	// 1. --config flag
	// 2. .replpane/config.yaml (current directory)
	// 3. ~/.config/replpane/config.yaml (user config)
	target := explicit
	switch {
	case explicit != "":
		v.SetConfigFile(explicit)
	case fileExists(localConfigPath):
		target = localConfigPath
		v.SetConfigFile(localConfigPath)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return config.Config{}, "", fmt.Errorf("locating home directory: %w", err)
		}
		dir := filepath.Join(home, ".config", "replpane")
		target = filepath.Join(dir, "config.yaml")
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, "", fmt.Errorf("reading config: %w", err)
		}
		// First run: write the commented template and read it back.
		if writeErr := config.WriteDefaultConfig(target); writeErr == nil {
			v.SetConfigFile(target)
			if err := v.ReadInConfig(); err != nil {
				return config.Config{}, "", fmt.Errorf("reading config: %w", err)
			}
		} else {
			// Continue on defaults; nothing to watch or save to.
			log.ErrorErr(log.CatConfig, "Running without a config file", writeErr, "path", target)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// initLogging enables the debug log when requested via flag or env var.
// The returned cleanup is never nil.
func initLogging(prefix string) (func(), error) {
	if !debugFlag && os.Getenv("REPLPANE_DEBUG") == "" {
		return func() {}, nil
	}
	logPath := os.Getenv("REPLPANE_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.InitWithTeaLog(logPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	if name := os.Getenv("REPLPANE_LOG_LEVEL"); name != "" {
		level, err := log.ParseLevel(name)
		if err != nil {
			cleanup()
			return nil, err
		}
		log.SetMinLevel(level)
	}
	log.Info(log.CatConfig, "replpane starting", "version", version, "logPath", logPath)
	return cleanup, nil
}

func runApp(cmd *cobra.Command, _ []string) error {
	cleanupLog, err := initLogging("replpane")
	if err != nil {
		return err
	}
	defer cleanupLog()

	v := viper.GetViper()
	cfg, configPath, err := loadConfig(v, cfgFile)
	if err != nil {
		return err
	}

	placement := cfg.UI.Placement()
	if placementFlag != "" {
		if placement, err = config.ParsePlacement(placementFlag); err != nil {
			return err
		}
	}

	rt, err := newRuntime(cfg, configPath, runtimeOptions{
		ExecutableOverride: executableFlag,
		Viper:              v,
	})
	if err != nil {
		return err
	}

	model := app.New(app.Options{
		Interpreter: rt.supervisor,
		Sink:        rt.sink,
		Store:       rt.store,
		ConfigPath:  configPath,
		Placement:   placement,
	})
	p := tea.NewProgram(
		&model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)

	_, err = p.Run()

	if closeErr := model.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := rt.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
