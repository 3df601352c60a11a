// Probe Doctor - sensor log monitoring for healthcheck probe events
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/supporttools/probe-doctor/pkg/detector"
	"github.com/supporttools/probe-doctor/pkg/exporters/http"
	"github.com/supporttools/probe-doctor/pkg/exporters/logexp"
	"github.com/supporttools/probe-doctor/pkg/exporters/prometheus"
	"github.com/supporttools/probe-doctor/pkg/health"
	"github.com/supporttools/probe-doctor/pkg/logger"
	"github.com/supporttools/probe-doctor/pkg/monitors"
	"github.com/supporttools/probe-doctor/pkg/reload"
	"github.com/supporttools/probe-doctor/pkg/types"
	"github.com/supporttools/probe-doctor/pkg/util"

	// Import monitor packages to register them.
	_ "github.com/supporttools/probe-doctor/pkg/monitors/zeek"
)

// Build-time variables set by goreleaser or make
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Command-line flags
var (
	configPath = flag.String("config", "/etc/probe-doctor/config.yaml", "Path to configuration file")
	sensorName = flag.String("sensor-name", "", "Override sensor name (defaults to config or hostname)")
	logLevel   = flag.String("log-level", "", "Override log level (debug, info, warn, error, fatal)")
	logFormat  = flag.String("log-format", "", "Override log format (json, text)")
	version    = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *version {
		printVersion()
		return
	}

	// os.Exit skips deferred cleanup, so the process body lives in run
	// and the exit code is applied here in the outermost frame.
	os.Exit(run())
}

func run() int {
	config, err := loadConfiguration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if err := logger.Initialize(config.Settings.LogLevel, config.Settings.LogFormat,
		config.Settings.LogOutput, config.Settings.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logger.Close()

	logger.Infof("Probe Doctor %s starting", Version)
	logger.Infof("Sensor: %s, monitors configured: %d",
		config.Settings.SensorName, len(config.Monitors))

	if err := config.ValidateMonitorTypes(monitors.DefaultRegistry); err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats := &detectorStats{}

	healthServer := startHealthServer(config, stats)
	metricsServer := startMetricsServer(config)

	// Hot reload delivers a validated replacement config; the run loop
	// below tears down the current generation and rebuilds from it.
	reloadCh := make(chan *types.ProbeDoctorConfig, 1)
	if config.Settings.ReloadEnabled {
		startReloadCoordinator(ctx, config, reloadCh)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	exitCode := 0

runLoop:
	for {
		genStop, errChan, err := startGeneration(ctx, config, stats)
		if err != nil {
			logger.Errorf("Failed to start monitors: %v", err)
			exitCode = 1
			break
		}

		if healthServer != nil {
			healthServer.SetReady(true)
		}
		logger.Infof("Probe Doctor started successfully")

		select {
		case sig := <-sigChan:
			logger.Infof("Received signal %v, initiating graceful shutdown", sig)
			genStop()
			if err := <-errChan; err != nil {
				logger.WithError(err).Errorf("Detector shutdown error")
			}
			break runLoop

		case err := <-errChan:
			if err != nil {
				logger.WithError(err).Errorf("Detector terminated")
				exitCode = 1
			}
			genStop()
			break runLoop

		case newConfig := <-reloadCh:
			logger.Infof("Applying reloaded configuration")
			if healthServer != nil {
				healthServer.SetReady(false)
			}
			genStop()
			if err := <-errChan; err != nil {
				logger.WithError(err).Warnf("Detector shutdown error during reload")
			}
			config = newConfig
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if healthServer != nil {
		healthServer.SetReady(false)
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warnf("Health server shutdown error")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warnf("Metrics server shutdown error")
		}
	}

	logger.Infof("Probe Doctor stopped")
	return exitCode
}

// startGeneration builds monitors, exporters and a detector from the
// given config and runs the detector. It returns a stop function that
// cancels this generation only, plus the channel Run's result arrives on.
func startGeneration(ctx context.Context, config *types.ProbeDoctorConfig, stats *detectorStats) (context.CancelFunc, <-chan error, error) {
	genCtx, genCancel := context.WithCancel(ctx)

	mons, err := monitors.CreateMonitorsFromConfigs(genCtx, config.Monitors)
	if err != nil {
		genCancel()
		return nil, nil, fmt.Errorf("failed to create monitors: %w", err)
	}
	if len(mons) == 0 {
		genCancel()
		return nil, nil, fmt.Errorf("no monitors were created (all disabled or invalid)")
	}
	logger.Infof("Created %d monitor(s)", len(mons))

	exporters, err := createExporters(config)
	if err != nil {
		genCancel()
		return nil, nil, err
	}
	logger.Infof("Created %d exporter(s)", len(exporters))

	pd, err := detector.NewProbeDetector(config, mons, exporters)
	if err != nil {
		genCancel()
		return nil, nil, fmt.Errorf("failed to create probe detector: %w", err)
	}
	stats.Set(pd)

	errChan := make(chan error, 1)
	go func() {
		errChan <- pd.Run(genCtx)
	}()

	return genCancel, errChan, nil
}

// startReloadCoordinator watches the config file and forwards accepted
// configs to the run loop. Port or log destination changes still need a
// restart; everything else takes effect on the next generation.
func startReloadCoordinator(ctx context.Context, config *types.ProbeDoctorConfig, reloadCh chan<- *types.ProbeDoctorConfig) {
	coordinator, err := reload.NewCoordinator(*configPath, config,
		func(ctx context.Context, newConfig *types.ProbeDoctorConfig, diff *reload.ConfigDiff) error {
			if err := newConfig.ValidateMonitorTypes(monitors.DefaultRegistry); err != nil {
				return err
			}
			if diff.SettingsChanged {
				logger.Warnf("Settings changed in reloaded config; health/metrics ports and log destination require a restart")
			}
			select {
			case reloadCh <- newConfig:
				return nil
			default:
				return fmt.Errorf("previous reload still pending")
			}
		})
	if err != nil {
		logger.Fatalf("Failed to create reload coordinator: %v", err)
	}

	go func() {
		if err := coordinator.Run(ctx); err != nil {
			logger.WithError(err).Errorf("Config watcher stopped")
		}
	}()
}

// loadConfiguration loads the config file (or defaults when it does not
// exist) and applies CLI flag overrides.
func loadConfiguration() (*types.ProbeDoctorConfig, error) {
	config, err := util.LoadConfigOrDefault(*configPath)
	if err != nil {
		return nil, err
	}

	if *sensorName != "" {
		config.Settings.SensorName = *sensorName
	}
	if *logLevel != "" {
		config.Settings.LogLevel = *logLevel
	}
	if *logFormat != "" {
		config.Settings.LogFormat = *logFormat
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after applying overrides: %w", err)
	}

	return config, nil
}

// createExporters builds every enabled event sink. The log exporter is
// used when nothing else is enabled so events are never silently dropped.
func createExporters(config *types.ProbeDoctorConfig) ([]types.Exporter, error) {
	var exporters []types.Exporter

	if config.Exporters.Log != nil && config.Exporters.Log.Enabled {
		exporters = append(exporters, logexp.NewExporter())
		logger.Infof("Log exporter enabled")
	}

	if config.Exporters.HTTP != nil && config.Exporters.HTTP.Enabled {
		exporter, err := http.NewExporter(config.Exporters.HTTP, config.Settings.SensorName)
		if err != nil {
			return nil, fmt.Errorf("failed to create http exporter: %w", err)
		}
		exporters = append(exporters, exporter)
		logger.Infof("HTTP exporter enabled with %d webhook(s)", len(config.Exporters.HTTP.Webhooks))
	}

	if len(exporters) == 0 {
		exporters = append(exporters, logexp.NewExporter())
		logger.Warnf("No exporters enabled, falling back to log exporter")
	}

	return exporters, nil
}

// detectorStats adapts the detector to the health server's StatsProvider.
// The detector is rebuilt on reload, so access goes through a mutex.
type detectorStats struct {
	mu sync.Mutex
	pd *detector.ProbeDetector
}

func (d *detectorStats) Set(pd *detector.ProbeDetector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pd = pd
}

func (d *detectorStats) Stats() interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pd == nil {
		return nil
	}
	return d.pd.GetStatistics()
}

// startHealthServer starts the liveness endpoint when enabled.
func startHealthServer(config *types.ProbeDoctorConfig, stats *detectorStats) *health.Server {
	if !config.Settings.HealthEnabled {
		return nil
	}

	server, err := health.NewServer(&health.Config{
		Enabled:     true,
		BindAddress: config.Settings.HealthBind,
		Port:        config.Settings.HealthPort,
	}, stats)
	if err != nil {
		logger.Fatalf("Failed to create health server: %v", err)
	}
	if err := server.Start(); err != nil {
		logger.Fatalf("Failed to start health server: %v", err)
	}
	return server
}

// startMetricsServer starts the Prometheus endpoint when enabled.
func startMetricsServer(config *types.ProbeDoctorConfig) *prometheus.Server {
	if config.Exporters.Prometheus == nil || !config.Exporters.Prometheus.Enabled {
		return nil
	}

	server, err := prometheus.NewServer(config.Exporters.Prometheus)
	if err != nil {
		logger.Fatalf("Failed to create metrics server: %v", err)
	}
	if err := server.Start(); err != nil {
		logger.Fatalf("Failed to start metrics server: %v", err)
	}
	return server
}

// printVersion prints version information to stdout.
func printVersion() {
	fmt.Printf("probe-doctor %s\n", Version)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
	fmt.Printf("  Built: %s\n", BuildTime)
	fmt.Printf("  Go Version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
