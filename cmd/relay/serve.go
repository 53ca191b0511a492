package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emsgrid/vitals-relay/internal/bridge"
	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/dedup"
	"github.com/emsgrid/vitals-relay/internal/registry"
	"github.com/emsgrid/vitals-relay/internal/router"
	"github.com/emsgrid/vitals-relay/internal/server"
	"github.com/emsgrid/vitals-relay/internal/simulator"
	"github.com/emsgrid/vitals-relay/internal/utils"
	"github.com/emsgrid/vitals-relay/pkg/file"
	"github.com/emsgrid/vitals-relay/pkg/mqtt"
	"github.com/emsgrid/vitals-relay/pkg/token"
)

// serveCmd starts the relay server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the relay server.

The server accepts websocket connections on the configured path, serves
the health and login APIs, and runs until interrupted (Ctrl+C) or it
receives SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "configs/config.yaml", "path to config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(configFile, fileClient)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(config.Logging.Level)
	if err != nil {
		return err
	}

	applyDefaults(config)

	var minVersion *semver.Version
	if config.Server.MinVersion != "" {
		minVersion, err = semver.NewVersion(config.Server.MinVersion)
		if err != nil {
			return fmt.Errorf("invalid min_app_version %q: %w", config.Server.MinVersion, err)
		}
	}

	tokens, err := token.NewManager(config.Auth.JWTSecret, config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	reg := registry.NewRegistry(config.Server.BroadcastPool, logger)
	ded := dedup.NewEngine(config.Dedup.Window, config.Dedup.Retention,
		config.Dedup.SweepInterval, nil, logger)
	sims := simulator.NewManager(config.Simulation.Interval, logger)

	var pub router.Publisher
	var mqttClient *mqtt.MqttService
	if config.Bridge.Enabled {
		mqttClient = mqtt.NewMqttService(fileClient)
		clientID := config.Bridge.ClientID + "-" + uuid.NewString()
		if err := mqttClient.Initialize(config.Bridge.Broker, clientID, config.Bridge.CACertificate); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		pub = bridge.NewBridge(mqttClient, config.Bridge.TopicPrefix, byte(config.Bridge.QOS), logger)
		logger.Info().Str("broker", config.Bridge.Broker).Msg("MQTT bridge connected")
	}

	rt := router.NewRouter(reg, ded, sims, pub, minVersion, nil, logger)
	ws := server.NewWSHandler(rt, config.Server.WriteTimeout, logger)
	srv := server.NewServer(config.Server.Address, config.Server.WebSocketPath,
		reg, ws, tokens, config.Auth.Users, logger)

	if err := ded.Start(); err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info().Str("address", config.Server.Address).Msg("relay started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	if err := srv.Stop(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	sims.StopAll()
	if err := ded.Stop(); err != nil {
		logger.Error().Err(err).Msg("dedup engine shutdown failed")
	}
	reg.Shutdown()
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// newLogger creates a JSON logger for CLI use.
func newLogger(level string) (zerolog.Logger, error) {
	if level == "" {
		level = "info"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger(), nil
}

// applyDefaults fills unset config values with operational defaults.
func applyDefaults(config *utils.Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.WebSocketPath == "" {
		config.Server.WebSocketPath = "/ws"
	}
	if config.Server.WriteTimeout <= 0 {
		config.Server.WriteTimeout = 10 * time.Second
	}
	if config.Server.BroadcastPool <= 0 {
		config.Server.BroadcastPool = 8
	}
	if config.Dedup.Window <= 0 {
		config.Dedup.Window = constants.DedupWindow
	}
	if config.Dedup.Retention <= 0 {
		config.Dedup.Retention = constants.DedupRetention
	}
	if config.Dedup.SweepInterval <= 0 {
		config.Dedup.SweepInterval = constants.DedupSweepInterval
	}
	if config.Simulation.Interval <= 0 {
		config.Simulation.Interval = constants.SimulationInterval
	}
}
