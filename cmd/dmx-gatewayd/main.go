// Command dmx-gatewayd is the Linux-side gateway daemon: it loads the
// lighting configuration, attaches to the real-time core through the
// dmxctl subprocess (internal/rtsubprocess), and serves the unified API
// contract over HTTP, WebSocket, Modbus/TCP, and MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/gatewayhttp"
	"dmx-gateway/internal/gatewaymodbus"
	"dmx-gateway/internal/gatewaymqtt"
	"dmx-gateway/internal/logger"
	"dmx-gateway/internal/rtsubprocess"
	"dmx-gateway/internal/scheduler"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		dryRun     = flag.Bool("dry-run", false, "Validate configuration and exit")
	)
	flag.Parse()

	cfg, err := gatewayconfig.Load(*configPath)
	if err != nil {
		fmt.Printf("configuration load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(levelOrDefault(cfg.Logging.Level))
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	totalLights := 0
	for _, group := range cfg.Lights {
		totalLights += len(group)
	}
	log.With(logger.Fields{
		"groups": len(cfg.Lights),
		"lights": totalLights,
		"http":   cfg.Server.HTTP,
	}).Info("configuration loaded")

	if *dryRun {
		log.Info("dry run - configuration is valid")
		return
	}

	client := rtsubprocess.New(cfg.DMX.Client, cfg.DMX.Device, time.Duration(cfg.DMX.TimeoutMs)*time.Millisecond, log)
	state := coordinator.New(cfg, client, log)

	if cfg.DMX.AutoEnable {
		if err := state.Enable(); err != nil {
			log.With(logger.Fields{"error": err}).Warn("failed to auto-enable dmx on startup")
		} else {
			log.Info("dmx auto-enabled on startup")
		}
	}

	if cfg.DMX.RefreshMs > 0 {
		state.StartRefresh(time.Duration(cfg.DMX.RefreshMs) * time.Millisecond)
	}

	httpServer := gatewayhttp.NewServer(cfg, state, log)
	if err := httpServer.Start(); err != nil {
		log.With(logger.Fields{"error": err}).Error("failed to start http server")
		os.Exit(1)
	}

	var modbusServer *gatewaymodbus.Server
	if cfg.Modbus != nil {
		modbusServer = gatewaymodbus.NewServer(cfg.Modbus, state, log)
		if err := modbusServer.Start(); err != nil {
			log.With(logger.Fields{"error": err}).Error("failed to start modbus server")
			os.Exit(1)
		}
	}

	var mqttClient *gatewaymqtt.Client
	if cfg.MQTT != nil {
		mqttClient = gatewaymqtt.NewClient(cfg.MQTT, state, log)
		if err := mqttClient.Start(); err != nil {
			log.With(logger.Fields{"error": err}).Error("failed to start mqtt client")
			os.Exit(1)
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule != nil && len(cfg.Schedule.Events) > 0 {
		sched, err = scheduler.New(cfg.Schedule, state, log)
		if err != nil {
			log.With(logger.Fields{"error": err}).Error("failed to create scheduler")
			os.Exit(1)
		}
		sched.Start()
		httpServer.SetScheduler(sched)
	}

	log.With(logger.Fields{
		"http":     cfg.Server.HTTP,
		"modbus":   cfg.Modbus != nil,
		"mqtt":     cfg.MQTT != nil,
		"schedule": cfg.Schedule != nil,
	}).Info("dmx gateway ready")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Info("shutting down")

	if sched != nil {
		sched.Stop()
	}
	if mqttClient != nil {
		mqttClient.Stop()
	}
	if modbusServer != nil {
		modbusServer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.With(logger.Fields{"error": err}).Error("http server shutdown error")
	}

	if err := client.Disable(); err != nil {
		log.With(logger.Fields{"error": err}).Warn("failed to disable dmx on shutdown")
	}

	state.StopRefresh()

	log.Info("dmx gateway stopped")
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
