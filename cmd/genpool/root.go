package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/genpool/pkg/config"
	"github.com/ajitpratap0/genpool/pkg/logger"
	"github.com/ajitpratap0/genpool/pkg/observability"
)

var version = "0.1.0"

// app carries state shared by every subcommand.
type app struct {
	configFile string
	logLevel   string

	cfg    *config.Config
	log    *zap.Logger
	tracer *sdktrace.TracerProvider
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "genpool",
		Short: "genpool - generational handle pools",
		Long: `genpool drives generational-handle object pools: churn benchmarks across
many concurrent pools, a handle-based scene graph, and pool snapshots.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newBenchCmd(a),
		newSceneCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}
	l, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	logger.Set(l)
	a.cfg = cfg
	a.log = l.With(zap.String("component", "genpool-cli"))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWith(ctx, logger.CommandKey, cmd.Name())
	ctx = logger.ContextWith(ctx, logger.SessionKey, uuid.NewString())
	cmd.SetContext(ctx)

	if cfg.Tracing.Enabled {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = cfg.Tracing.ServiceName
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Tracing.SampleRate
		tc.Writer = cmd.ErrOrStderr()
		tp, err := observability.InitTracing(ctx, tc)
		if err != nil {
			return err
		}
		a.tracer = tp
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// version needs no configuration
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "genpool v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
