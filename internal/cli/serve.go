package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/logging"
	"github.com/ppiankov/veracity/internal/observe"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification HTTP API",
	Long: `Serve exposes verification over HTTP:
  POST /v1/verify     verify one claim
  POST /v1/analyze    decompose a claim without verifying it
  POST /v1/batch      verify several claims
  POST /v1/feedback   report the correct verdict of a claim
  GET  /healthz       liveness
  GET  /metrics       Prometheus metrics

The process is configured from VERACITY_* environment variables
(VERACITY_HTTP_ADDR, VERACITY_LOG_LEVEL, VERACITY_ALLOWED_ORIGINS, ...).
The engine configuration file comes from --config or VERACITY_CONFIG.

Example:
  VERACITY_HTTP_ADDR=:9000 veracity serve --config ./veracity.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := server.ParseEnv()
	if err != nil {
		return err
	}
	path := cfgFile
	if path == "" {
		path = env.ConfigPath
	}
	cfg, file, err := loadConfig(path)
	if err != nil {
		return err
	}

	level := env.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, env.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if file != "" {
		logger.Info("using config file", zap.String("path", file))
	}

	prom := observe.NewPrometheusSink()
	otelSink, err := observe.NewOTelSink(nil)
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}
	sink := observe.Multi{prom, otelSink, observe.NewLogSink(logger)}

	p, err := pipeline.Open(ctx, cfg, logger, sink)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	maint, err := server.NewMaintenance(env.MaintenanceSchedule, p.Store(), p.Profiles(), logger)
	if err != nil {
		return err
	}
	maint.Start()
	defer maint.Stop()

	srv := server.New(p, server.Options{
		Logger:         logger,
		Metrics:        prom.Handler(),
		AllowedOrigins: env.AllowedOrigins,
		RequestTimeout: env.RequestTimeout,
		Debug:          env.Debug,
	})
	logger.Info("veracity listening", zap.String("addr", env.Addr), zap.String("version", Version))
	return srv.Run(ctx, env.Addr, env.ShutdownTimeout)
}
