package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/arrowstream/logflow/internal/component/tracer"
	"github.com/arrowstream/logflow/internal/config"
	"github.com/arrowstream/logflow/internal/logx"
	"github.com/arrowstream/logflow/internal/metrics"
	"github.com/arrowstream/logflow/internal/supervisor"
)

const defaultConfigPath = "/etc/logflow/main.ini"

var (
	configPath string
	logLevel   string
	logFile    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the configuration and run every configured flow until stopped",
	RunE:  runE,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the INI configuration file")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "rotate logs through this file instead of stderr")

	// run is also the root command's default action, so a bare
	// `logflow -c main.ini` works.
	rootCmd.RunE = runE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}

func runE(cmd *cobra.Command, _ []string) error {
	rc, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("logflow: %w", err)
	}

	// An explicit --log-level wins; otherwise settings.log_level from the
	// configuration file applies.
	if !cmd.Flags().Changed("log-level") {
		if lvl := rc.Settings["log_level"]; lvl != "" {
			logLevel = lvl
		}
	}
	logger := buildLogger()

	trc := tracer.New(tracerConfigFromSettings(rc.Settings))
	m := metrics.New()
	sup := supervisor.New(supervisor.Options{Logger: logger, Metrics: m, Tracer: trc})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Start(ctx, rc); err != nil {
		return fmt.Errorf("logflow: %w", err)
	}
	logger.Info("logflow started", "flows", len(rc.Flows))

	if addr, ok := rc.Settings["metrics_addr"]; ok && addr != "" {
		go func() {
			if err := m.Serve(ctx, addr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	runErr := sup.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("logflow stopped", "reason", "interrupt")
		if runErr != nil {
			logger.Error("shutdown error", "error", runErr)
		}
		return ErrInterrupted
	}
	return runErr
}

func buildLogger() *slog.Logger {
	if logFile == "" {
		return logx.New(logLevel)
	}
	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
	}
	return logx.NewWithWriter(logLevel, writer)
}

func tracerConfigFromSettings(settings map[string]string) tracer.Config {
	if t, ok := settings["tracer"]; ok && t != "" {
		conf, err := tracer.FromAny(t)
		if err == nil {
			return conf
		}
	}
	return tracer.NewConfig()
}
