package main

import (
	"context"
	"runtime"
	"time"

	"github.com/Borislavv/traffic-guard/internal/guard"
	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/k8s/probe/liveness"
	"github.com/Borislavv/traffic-guard/pkg/shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"
)

// setMaxProcs automatically sets the optimal GOMAXPROCS value (CPU parallelism)
// based on the available CPUs and cgroup/docker CPU quotas (uses automaxprocs).
func setMaxProcs() {
	if _, err := maxprocs.Set(); err != nil {
		log.Err(err).Msg("[main] setting up GOMAXPROCS value failed")
		panic(err)
	}
	log.Info().Msgf("[main] optimized GOMAXPROCS=%d was set up", runtime.GOMAXPROCS(0))
}

// loadCfg loads the configuration struct from the APP_ENV selected yaml file.
func loadCfg() (*config.Guard, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Err(err).Msg("[config] failed to load")
		return nil, err
	}
	return cfg, nil
}

// Main entrypoint: configures and starts the traffic-guard application.
func main() {
	// Create a root context for graceful shutdown and cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick up APP_ENV and friends from a local .env when present.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("[main] no .env file found, relying on the environment")
	}

	// Optimize GOMAXPROCS for the current environment.
	setMaxProcs()

	// Run the coarse millisecond clock the window arithmetic reads.
	stopClock := ctime.Start(time.Millisecond)
	defer stopClock()

	// Load the application configuration.
	cfg, cfgError := loadCfg()
	if cfgError != nil {
		log.Err(cfgError).Msg("[main] failed to load traffic-guard config")
		return
	}

	// Setup graceful shutdown handler (SIGTERM, SIGINT, etc).
	gracefulShutdown := shutdown.NewGraceful(ctx, cancel)
	gracefulShutdown.SetGracefulTimeout(time.Minute)

	// Initialize liveness probe for Kubernetes/Cloud health checks.
	probe := liveness.NewProbe(cfg.Guard.K8S.Probe.Timeout)

	// Initialize and start the application.
	app, err := guard.NewApp(ctx, cfg, probe)
	if err != nil {
		log.Err(err).Msg("[main] failed to init traffic-guard app")
		return
	}

	// Register app for graceful shutdown.
	gracefulShutdown.Add(1)
	go app.Start(gracefulShutdown)

	// Listen for OS signals or context cancellation and wait for shutdown.
	if err := gracefulShutdown.ListenCancelAndAwait(); err != nil {
		log.Err(err).Msg("failed to gracefully shut down service")
	}
}
