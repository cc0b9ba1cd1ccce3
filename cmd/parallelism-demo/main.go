// Command parallelism-demo runs a small illustrative task graph through
// the scheduler package and prints the harvested results, the way
// cmd/divinesense wires a Profile, a cobra root command, and a graceful
// shutdown around its own server.New.
//
// Invoked with execctx.WorkerFlag as its sole argument, it instead acts
// as the re-exec'd worker side of a Process-kind task: it serves one
// execctx.Request off stdin and exits, never reaching the cobra command
// tree at all.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idanhazan/parallelism/internal/profile"
	"github.com/idanhazan/parallelism/internal/version"
	"github.com/idanhazan/parallelism/scheduler"
	"github.com/idanhazan/parallelism/scheduler/execctx"
	"github.com/idanhazan/parallelism/scheduler/metrics"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == execctx.WorkerFlag {
		runWorker()
		return
	}
	if err := rootCmd.Execute(); err != nil {
		slog.Error("parallelism-demo exited with an error", "error", err)
		os.Exit(1)
	}
}

// runWorker serves exactly one execctx.Request from stdin, the
// re-exec'd child side of scheduler.ProcessExecutor's protocol.
func runWorker() {
	if err := execctx.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "parallelism-demo",
	Short:   "Run an illustrative dependency-aware task graph through the scheduler package.",
	Version: version.StringFull(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
	RunE: runDemo,
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("log-level", "info")

	rootCmd.PersistentFlags().String("mode", "demo", `mode, can be "prod", "dev", or "demo"`)
	rootCmd.PersistentFlags().String("log-level", "info", "log level, one of debug/info/warn/error")
	rootCmd.PersistentFlags().Int("processes", 0, "global process budget (default: host CPU count)")
	rootCmd.PersistentFlags().Int("threads", 0, "global thread budget (default: host CPU count)")
	rootCmd.PersistentFlags().Float64("system-processor", 100, "global system processor budget, percent")
	rootCmd.PersistentFlags().Float64("system-memory", 100, "global system memory budget, percent")
	rootCmd.PersistentFlags().Float64("graphics-processor", 100, "global graphics processor budget, percent")
	rootCmd.PersistentFlags().Float64("graphics-memory", 100, "global graphics memory budget, percent")
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to serve Prometheus metrics on, empty disables it")
	rootCmd.PersistentFlags().Int("poll-interval-ms", 50, "coordinator scan poll interval, milliseconds")

	for _, name := range []string{
		"mode", "log-level", "processes", "threads",
		"system-processor", "system-memory", "graphics-processor", "graphics-memory",
		"metrics-addr", "poll-interval-ms",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("parallelism")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func runDemo(cmd *cobra.Command, _ []string) error {
	// viper already layers flag > PARALLELISM_* env var > default for
	// every bound key (see init), so the Profile is built directly from
	// it rather than through profile.FromEnv(), which would only
	// re-apply the same env vars and silently discard an explicit flag.
	p := &profile.Profile{
		Mode:              viper.GetString("mode"),
		LogLevel:          viper.GetString("log-level"),
		Processes:         viper.GetInt("processes"),
		Threads:           viper.GetInt("threads"),
		SystemProcessor:   viper.GetFloat64("system-processor"),
		SystemMemory:      viper.GetFloat64("system-memory"),
		GraphicsProcessor: viper.GetFloat64("graphics-processor"),
		GraphicsMemory:    viper.GetFloat64("graphics-memory"),
		PollIntervalMS:    viper.GetInt("poll-interval-ms"),
		MetricsAddr:       viper.GetString("metrics-addr"),
	}
	if err := p.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: p.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("parallelism-demo starting", "mode", p.Mode, "version", version.GetCurrentVersion(p.Mode), "build", version.String())

	var exporter *metrics.PrometheusExporter
	if p.MetricsAddr != "" {
		exporter = metrics.NewPrometheusExporter(metrics.DefaultConfig())
		server := &http.Server{Addr: p.MetricsAddr, Handler: exporter.GetHandler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer exporter.Close()
		logger.Info("serving metrics", "addr", p.MetricsAddr)
	}

	tasks, err := buildDemoGraph()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, terminationSignals...)
	go func() {
		<-sig
		logger.Warn("received shutdown signal, canceling scheduler run")
		cancel()
	}()

	result, err := scheduler.Run(ctx, tasks, scheduler.RunOptions{
		Processes:         p.Processes,
		Threads:           p.Threads,
		SystemProcessor:   p.SystemProcessor,
		SystemMemory:      p.SystemMemory,
		GraphicsProcessor: p.GraphicsProcessor,
		GraphicsMemory:    p.GraphicsMemory,
		Logger:            logger,
		PollInterval:      time.Duration(p.PollIntervalMS) * time.Millisecond,
		Exporter:          exporter,
	})
	if err != nil {
		return err
	}

	for _, name := range result.ReturnValue.Keys() {
		value, _ := result.ReturnValue.Get(name)
		fmt.Printf("%s -> %v\n", name, value)
	}
	for _, name := range result.RaiseException.Keys() {
		raised, _ := result.RaiseException.Get(name)
		fmt.Printf("%s failed: %v\n", name, raised.Err)
	}
	return nil
}

// buildDemoGraph wires a small fan-in task graph: two independent
// fetches (one Process-kind, one Thread-kind) each feed a transform,
// and both transforms feed a final report via ReturnProxy arguments.
func buildDemoGraph() ([]*scheduler.TaskSpec, error) {
	fetchA, err := scheduler.ScheduledTask(scheduler.Process, "fetch-a", processFetch, fetchTarget, scheduler.Options{
		Kwargs: map[string]any{"batch": 1},
	})
	if err != nil {
		return nil, err
	}
	fetchB, err := scheduler.ScheduledTask(scheduler.Thread, "fetch-b", "", fetchTarget, scheduler.Options{
		Kwargs: map[string]any{"batch": 2},
	})
	if err != nil {
		return nil, err
	}
	transformA, err := scheduler.ScheduledTask(scheduler.Thread, "transform-a", "", transformTarget, scheduler.Options{
		Args:      []any{fetchA.ReturnValue()},
		Continual: true,
	})
	if err != nil {
		return nil, err
	}
	transformB, err := scheduler.ScheduledTask(scheduler.Thread, "transform-b", "", transformTarget, scheduler.Options{
		Args: []any{fetchB.ReturnValue()},
	})
	if err != nil {
		return nil, err
	}
	report, err := scheduler.ScheduledTask(scheduler.Thread, "report", "", reportTarget, scheduler.Options{
		Args:      []any{transformA.ReturnValue(), transformB.ReturnValue()},
		Continual: true,
	})
	if err != nil {
		return nil, err
	}
	return []*scheduler.TaskSpec{fetchA, fetchB, transformA, transformB, report}, nil
}
