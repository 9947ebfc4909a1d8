// Package main starts the payload relay binary.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ibs-source/payload-relay/internal/config"
	"github.com/ibs-source/payload-relay/internal/hotpath"
	"github.com/ibs-source/payload-relay/internal/log"
	"github.com/ibs-source/payload-relay/internal/mqtt"
	"github.com/ibs-source/payload-relay/internal/pending"
	"github.com/ibs-source/payload-relay/internal/redis"
	"github.com/ibs-source/payload-relay/internal/wire"
)

// services holds everything run() has to close on exit
type services struct {
	redis   *redis.Client
	mqtt    *mqtt.Pool
	tracker *pending.Tracker
	hp      *hotpath.HotPath
}

func run() int {
	logger := log.New()
	logger.Info("Starting payload relay")

	cfg, err := loadAndLogConfig(logger)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return 1
	}

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		logger.Error("Failed to start services: %v", err)
		return 1
	}
	defer closeServices(svc, logger)

	return runMainLoop(svc.hp, cfg, logger)
}

func loadAndLogConfig(logger *log.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Log.Level)

	logger.Info("Configuration loaded successfully")
	logger.Info("Redis: %s, Stream: %s (dynamic groups: group-{stream})", cfg.Redis.Address, cfg.Redis.Stream)
	logger.Info("MQTT: %s, Publish: %s, ACK: %s", cfg.MQTT.Broker, cfg.MQTT.PublishTopic, cfg.MQTT.AckTopic)
	logger.Info("Pipeline: Buffer=%d, Workers=%d, PendingTTL=%s",
		cfg.Pipeline.BufferCapacity, cfg.Pipeline.PublishWorkers, cfg.Pipeline.PendingTTL)
	logger.Info("Payload: Codec=%s, MaxFrameBytes=%d", cfg.Payload.Codec, cfg.Payload.MaxFrameBytes)
	return cfg, nil
}

func initializeServices(cfg *config.Config, logger *log.Logger) (*services, error) {
	codec, err := wire.Lookup(cfg.Payload.Codec)
	if err != nil {
		return nil, err
	}

	svc := &services{}

	svc.redis, err = redis.NewClient(&cfg.Redis, codec, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to Redis")

	svc.mqtt, err = mqtt.NewPool(&cfg.MQTT, cfg.MQTT.PoolSize, codec, logger)
	if err != nil {
		closeServices(svc, logger)
		return nil, err
	}
	logger.Info("Connected to MQTT broker with %d connections", cfg.MQTT.PoolSize)

	svc.tracker, err = pending.NewTracker(cfg.Pipeline.PendingTTL, logger)
	if err != nil {
		closeServices(svc, logger)
		return nil, err
	}

	svc.hp = hotpath.New(svc.redis, svc.mqtt, svc.tracker, codec, cfg, logger)
	return svc, nil
}

func closeServices(svc *services, logger *log.Logger) {
	if svc.hp != nil {
		if err := svc.hp.Close(); err != nil {
			logger.Error("Error closing hot path: %v", err)
		}
	}
	if svc.mqtt != nil {
		if err := svc.mqtt.Close(); err != nil {
			logger.Error("Error closing MQTT pool: %v", err)
		}
	}
	if svc.tracker != nil {
		if n := svc.tracker.Len(); n > 0 {
			logger.Warn("%d acks still pending, their entries will be reclaimed", n)
		}
		if err := svc.tracker.Close(); err != nil {
			logger.Error("Error closing pending tracker: %v", err)
		}
	}
	if svc.redis != nil {
		if err := svc.redis.Close(); err != nil {
			logger.Error("Error closing Redis client: %v", err)
		}
	}
}

func runMainLoop(hp *hotpath.HotPath, cfg *config.Config, logger *log.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- hp.Run(ctx)
	}()

	logger.Info("Hot path orchestrator started")

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, initiating graceful shutdown", sig)
		cancel()
		return awaitShutdown(done, cfg, logger)

	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Hot path error: %v", err)
			return 1
		}
		return 0
	}
}

// awaitShutdown waits for the hot path loops to drain
func awaitShutdown(done <-chan error, cfg *config.Config, logger *log.Logger) int {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		logger.Info("Graceful shutdown completed")
		logger.Info("Relay stopped")
		return 0
	case <-shutdownCtx.Done():
		logger.Error("Shutdown timeout exceeded")
		return 1
	}
}

func main() {
	// Keep main minimal to ensure defers in run() execute correctly.
	os.Exit(run())
}
