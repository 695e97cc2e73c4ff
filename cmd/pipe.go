package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/replpane/internal/log"
	"github.com/zjrosen/replpane/internal/logsink"
	"github.com/zjrosen/replpane/internal/pubsub"
	"github.com/zjrosen/replpane/internal/supervisor"
)

var pipeWait time.Duration

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Feed stdin to the interpreter without the TUI",
	Long: `Start the interpreter, submit every line read from stdin and copy its
output to stdout and stderr. At end of input the interpreter is stopped.`,
	RunE: runPipeCmd,
}

func init() {
	pipeCmd.Flags().DurationVar(&pipeWait, "wait", 2*time.Second,
		"how long to wait for the interpreter to exit after end of input")
	rootCmd.AddCommand(pipeCmd)
}

func runPipeCmd(cmd *cobra.Command, _ []string) error {
	cleanupLog, err := initLogging("replpane-pipe")
	if err != nil {
		return err
	}
	defer cleanupLog()

	v := viper.GetViper()
	cfg, configPath, err := loadConfig(v, cfgFile)
	if err != nil {
		return err
	}

	// No live reload: a pipe session is short.
	rt, err := newRuntime(cfg, configPath, runtimeOptions{ExecutableOverride: executableFlag})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runPipe(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), rt, pipeWait)
	if closeErr := rt.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	rt.sink.Detach()
	return err
}

// runPipe submits each line of in until EOF or ctx is done, then stops the
// interpreter and waits up to wait for it to reach Stopped. The sink stays
// attached so rt.Close can flush output still queued.
func runPipe(ctx context.Context, in io.Reader, out, errOut io.Writer, rt *runtime, wait time.Duration) error {
	rt.sink.Attach(logsink.NewWriterSurface(out, errOut))

	if err := rt.supervisor.Start(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var inputErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				inputErr = <-readErr
				break loop
			}
			if err := rt.supervisor.Submit(ctx, line); err != nil {
				if errors.Is(err, supervisor.ErrSpawn) {
					return err
				}
				_, _ = fmt.Fprintf(errOut, "replpane: %v\n", err)
			}
		}
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	events := rt.supervisor.Events().Subscribe(waitCtx)

	if err := rt.supervisor.Stop(waitCtx); err != nil {
		log.ErrorErr(log.CatProc, "Stop after end of input failed", err)
	}
	stopped := pubsub.WaitFor(waitCtx, events, func(e pubsub.Event[supervisor.StateEvent]) bool {
		return e.Payload.To == supervisor.StateStopped
	})
	if !stopped {
		log.Warn(log.CatProc, "Interpreter still running after wait; killing", "wait", wait)
	}

	if inputErr != nil {
		return fmt.Errorf("reading input: %w", inputErr)
	}
	return nil
}
