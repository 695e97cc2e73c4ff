package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/replpane/internal/config"
	"github.com/zjrosen/replpane/internal/log"
	"github.com/zjrosen/replpane/internal/logsink"
	"github.com/zjrosen/replpane/internal/supervisor"
	"github.com/zjrosen/replpane/internal/tracing"
	"github.com/zjrosen/replpane/internal/watcher"
)

// runtime bundles the long-lived services shared by the TUI and pipe mode.
type runtime struct {
	store      *config.Store
	sink       *logsink.Sink
	supervisor *supervisor.Supervisor
	tracing    *tracing.Provider
	watcher    *watcher.Watcher
	watchStop  chan struct{}
	watchDone  chan struct{}
}

// runtimeOptions configures newRuntime.
type runtimeOptions struct {
	// ExecutableOverride, when set, wins over the configured path on every start.
	ExecutableOverride string
	// Viper is re-read when the config file changes. Nil disables watching.
	Viper *viper.Viper
	// Supervisor options, used by tests.
	SupervisorOptions []supervisor.Option
}

func newRuntime(cfg config.Config, configPath string, opts runtimeOptions) (*runtime, error) {
	tp, err := tracing.NewProvider(tracingConfig(cfg.Tracing))
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	log.Debug(log.CatTrace, "Tracing configured", "enabled", tp.Enabled(), "exporter", cfg.Tracing.Exporter)

	store := config.NewStore(cfg, configPath)
	sink := logsink.New()

	supOpts := append([]supervisor.Option{supervisor.WithTracer(tp.Tracer())}, opts.SupervisorOptions...)
	sup := supervisor.New(settingsFrom(store, opts.ExecutableOverride), sink, supOpts...)

	rt := &runtime{
		store:      store,
		sink:       sink,
		supervisor: sup,
		tracing:    tp,
	}

	if opts.Viper != nil && configPath != "" {
		if err := rt.watchConfig(opts.Viper, configPath); err != nil {
			// The app works without live reload.
			log.ErrorErr(log.CatWatcher, "Config watcher disabled", err, "path", configPath)
		}
	}
	return rt, nil
}

// settingsFrom reads the interpreter settings from the current snapshot.
func settingsFrom(store *config.Store, executableOverride string) supervisor.SettingsFunc {
	return func() supervisor.Settings {
		ic := store.Snapshot().Interpreter
		s := supervisor.Settings{
			ExecutablePath:     ic.ExecutablePath,
			InterruptDirective: ic.InterruptDirective,
			QuitDirective:      ic.QuitDirective,
		}
		if executableOverride != "" {
			s.ExecutablePath = executableOverride
		}
		return s
	}
}

func tracingConfig(tc config.TracingConfig) tracing.Config {
	out := tracing.Config{
		Enabled:        tc.Enabled,
		Exporter:       tc.Exporter,
		FilePath:       tc.FilePath,
		OTLPEndpoint:   tc.OTLPEndpoint,
		SampleRate:     tc.SampleRate,
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
	}
	if out.Enabled && out.Exporter == "file" && out.FilePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			out.FilePath = filepath.Join(home, ".config", "replpane", "traces", "traces.jsonl")
		}
	}
	return out
}

func (r *runtime) watchConfig(v *viper.Viper, configPath string) error {
	w, err := watcher.New(watcher.DefaultConfig(configPath))
	if err != nil {
		return err
	}
	onChange, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return err
	}

	r.watcher = w
	r.watchStop = make(chan struct{})
	r.watchDone = make(chan struct{})
	go func() {
		defer close(r.watchDone)
		for {
			select {
			case <-onChange:
				// Errors are logged by Reload; the previous snapshot stays active.
				_ = config.Reload(v, r.store)
			case <-r.watchStop:
				return
			}
		}
	}()
	return nil
}

// Close shuts the interpreter down and releases every service.
func (r *runtime) Close() error {
	var errs []error

	if r.watcher != nil {
		close(r.watchStop)
		<-r.watchDone
		if err := r.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping watcher: %w", err))
		}
	}
	if err := r.supervisor.Close(); err != nil {
		errs = append(errs, err)
	}
	r.store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing traces: %w", err))
	}
	return errors.Join(errs...)
}
