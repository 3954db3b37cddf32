// Command cfdpd is the CFDP entity daemon: it wires a filestore
// backend, the Remote Entity Configuration Table and its durable
// store, a host.Manager, the control-plane API, metrics, and
// telemetry into one running process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/internal/metrics"
	"github.com/cfdpgo/entity/internal/telemetry"
	"github.com/cfdpgo/entity/pkg/cfdp/host"
	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	remoteconfigstore "github.com/cfdpgo/entity/pkg/cfdp/remoteconfig/store"
	"github.com/cfdpgo/entity/pkg/cfdp/user"
	"github.com/cfdpgo/entity/pkg/config"
	"github.com/cfdpgo/entity/pkg/controlplane/api"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `cfdpd - CCSDS File Delivery Protocol entity daemon

Usage:
  cfdpd <command> [flags]

Commands:
  start    Start the daemon
  init     Write a sample configuration file
  logs     Show or follow the daemon's log file
  version  Show version information

Flags:
  --config string   Path to config file (default: $XDG_CONFIG_HOME/cfdpd/config.yaml)
  --force           Overwrite an existing config file (init command only)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		runStart()
	case "init":
		runInit()
	case "logs":
		runLogs()
	case "version", "--version", "-v":
		fmt.Printf("cfdpd %s (commit: %s, built: %s)\n", version, commit, date)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	force := fs.Bool("force", false, "overwrite existing config file")
	_ = fs.Parse(os.Args[2:])

	path := *configFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if !*force {
		if _, err := os.Stat(path); err == nil {
			log.Fatalf("config already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := &config.Config{
		LocalEntityID: 1,
		EntityIDWidth: 4,
		Filestore:     config.FilestoreConfig{Backend: config.BackendLocal, LocalPath: "./files"},
		MetricsPort:   9090,
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		log.Fatalf("write config: %v", err)
	}
	fmt.Printf("configuration written to %s\n", path)
}

func runStart() {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	if err := logger.Init(cfg.ToLoggerConfig()); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.ToTelemetryConfig(version))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ToProfilingConfig(version))
	if err != nil {
		log.Fatalf("init profiling: %v", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	localEntity, err := ids.NewEntityID(ids.Width(cfg.EntityIDWidth), cfg.LocalEntityID)
	if err != nil {
		log.Fatalf("invalid local_entity_id/entity_id_width: %v", err)
	}

	fs3, fsCloser, err := newFilestore(ctx, cfg.Filestore)
	if err != nil {
		log.Fatalf("init filestore: %v", err)
	}
	defer func() {
		if err := fsCloser.Close(); err != nil {
			logger.Error("filestore shutdown error", "error", err)
		}
	}()

	db, err := remoteconfigstore.New(&cfg.RemoteConfigs)
	if err != nil {
		log.Fatalf("open remote-config store: %v", err)
	}

	table := remoteconfig.NewTable()
	if err := db.LoadInto(ctx, table); err != nil {
		log.Fatalf("load remote-config table: %v", err)
	}
	logger.Info("remote entity configuration loaded", "entries", len(table.List()))

	reg := prometheus.NewRegistry()
	sourceMetrics := metrics.NewSourceMetrics(reg)
	destMetrics := metrics.NewDestMetrics(reg)
	lostSegmentMetrics := metrics.NewLostSegmentMetrics(reg)

	manager := host.NewManager(host.ManagerConfig{
		LocalEntityID:      localEntity,
		RemoteConfigs:      table,
		Filestore:          fs3,
		Indications:        user.NewLoggingIndications(),
		Transport:          loggingTransport{},
		SourceMetrics:      sourceMetrics,
		DestMetrics:        destMetrics,
		LostSegmentMetrics: lostSegmentMetrics,
	})

	apiServer, err := api.NewServer(cfg.ControlPlane, manager, db, table)
	if err != nil {
		log.Fatalf("init control-plane API: %v", err)
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("metrics server listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("cfdpd starting",
		"local_entity_id", cfg.LocalEntityID,
		"filestore_backend", cfg.Filestore.Backend,
		"control_plane_port", cfg.ControlPlane.Port,
	)

	if err := apiServer.Start(sigCtx); err != nil {
		logger.Error("control-plane API stopped with error", "error", err)
	}

	_ = metricsServer.Close()
	logger.Info("cfdpd stopped")
}
