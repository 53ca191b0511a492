package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/internal/reconcile"
	"github.com/emsgrid/vitals-relay/pkg/file"
)

const consoleReconnectDelay = 3 * time.Second

// consoleCmd runs a headless monitoring console against a relay.
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run a headless monitoring console",
	Long: `Connect to a relay as a subscriber and maintain the reconciled
patient board locally: suppress replayed transmissions, track alerts,
and persist the alert history across restarts.

The console reconnects automatically until interrupted.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().StringP("url", "u", "ws://localhost:8080/ws", "relay websocket URL")
	consoleCmd.Flags().String("history", "alert_history.json", "path to the persisted alert history")
	consoleCmd.Flags().String("log-level", "info", "log level")
}

func runConsole(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	historyPath, _ := cmd.Flags().GetString("history")
	level, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	store := reconcile.NewFileHistoryStore(historyPath, file.NewFileService())
	console := reconcile.NewConsole(store, nil, logger)
	if err := console.Start(context.Background()); err != nil {
		return err
	}
	defer console.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := runConsoleSession(ctx, url, console, logger); err != nil {
			logger.Warn().Err(err).Msg("console session ended")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("console stopped")
			return nil
		case <-time.After(consoleReconnectDelay):
		}
	}
}

// runConsoleSession holds one websocket session open, feeding broadcasts
// into the reconciliation state until the connection drops.
func runConsoleSession(ctx context.Context, url string, console *reconcile.Console, logger zerolog.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial relay: %w", err)
	}
	defer conn.Close()

	identify, err := json.Marshal(models.IdentifyRequest{Role: constants.RoleSubscriber, ClientVersion: version})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(models.Inbound{Type: constants.MessageIdentify, Payload: identify}); err != nil {
		return fmt.Errorf("failed to identify: %w", err)
	}

	console.Connect()
	defer console.Disconnect()
	logger.Info().Str("url", url).Msg("console connected")

	// Drop the read loop when the surrounding context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		raw := struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}{}
		if err := conn.ReadJSON(&raw); err != nil {
			return err
		}

		switch raw.Type {
		case constants.MessageVitalsUpdate:
			var event models.VitalsEvent
			if err := json.Unmarshal(raw.Payload, &event); err != nil {
				logger.Warn().Err(err).Msg("malformed vitals update")
				continue
			}
			if console.HandleVitals(event) {
				printVitals(event)
			}

		case constants.MessageEmergencyAlert:
			var alert models.EmergencyAlert
			if err := json.Unmarshal(raw.Payload, &alert); err != nil {
				logger.Warn().Err(err).Msg("malformed emergency alert")
				continue
			}
			if console.HandleAlert(alert) {
				printAlert(alert)
			}

		case constants.MessageLocationUpdate, constants.MessageConnectionStatus:
			// Position and status traffic is informational for a headless
			// console.

		default:
			logger.Debug().Str("type", raw.Type).Msg("unhandled broadcast")
		}
	}
}

func printVitals(event models.VitalsEvent) {
	fmt.Fprintf(os.Stdout, "[%s] %s (%s) HR=%d SpO2=%d%% BP=%d/%d -> %s\n",
		event.Timestamp.Format(time.TimeOnly),
		event.PatientName, event.PatientID,
		event.HeartRate, event.SpO2,
		event.BloodPressure.Systolic, event.BloodPressure.Diastolic,
		event.EmergencyLevel)
}

func printAlert(alert models.EmergencyAlert) {
	fmt.Fprintf(os.Stdout, "[%s] !! EMERGENCY %s: %s (unit %s)\n",
		alert.Timestamp.Format(time.TimeOnly),
		alert.PatientName, alert.Condition, alert.AmbulanceID)
}
