// Package server exposes the relay over HTTP: the websocket stream
// endpoint plus the health and login endpoints around it.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/internal/router"
)

const maxMessageBytes = 64 << 10

// wsSender delivers outbound messages over one websocket connection.
// gorilla/websocket allows a single writer at a time, so every write
// holds the connection's write lock and carries a deadline.
type wsSender struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (s *wsSender) Send(msg models.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

// WSHandler upgrades HTTP requests and pumps inbound messages into the
// router. One goroutine per connection; writes go through the sender.
type WSHandler struct {
	Router       *router.Router
	WriteTimeout time.Duration
	Logger       zerolog.Logger

	upgrader websocket.Upgrader
}

// NewWSHandler builds a handler around the router.
func NewWSHandler(rt *router.Router, writeTimeout time.Duration, logger zerolog.Logger) *WSHandler {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WSHandler{
		Router:       rt,
		WriteTimeout: writeTimeout,
		Logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser consoles connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the connection's read loop
// until the peer goes away.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	sender := &wsSender{conn: conn, writeTimeout: h.WriteTimeout}

	h.Router.Connect(connID, sender)
	h.Logger.Info().Str("connection_id", connID).Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	defer func() {
		h.Router.Disconnect(connID)
		conn.Close()
		h.Logger.Info().Str("connection_id", connID).Msg("websocket connection closed")
	}()

	conn.SetReadLimit(maxMessageBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Warn().Err(err).Str("connection_id", connID).Msg("websocket read failed")
			}
			return
		}

		var msg models.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reject(connID, "Invalid message format")
			continue
		}
		h.dispatch(connID, sender, msg)
	}
}

// dispatch validates the payload for the message type and hands it to the
// router. Validation failures are answered, never fatal to the connection.
func (h *WSHandler) dispatch(connID string, sender *wsSender, msg models.Inbound) {
	switch msg.Type {
	case constants.MessageIdentify:
		var req models.IdentifyRequest
		if err := decode(msg.Payload, &req); err != nil {
			h.reject(connID, "Invalid identify payload")
			return
		}
		if err := h.Router.Identify(connID, req, sender); err != nil {
			h.reject(connID, err.Error())
		}

	case constants.MessageTransmitVitals:
		var req models.VitalsRequest
		if err := decode(msg.Payload, &req); err != nil {
			h.reject(connID, "Invalid vitals payload")
			return
		}
		if req.PatientID == "" || req.PatientName == "" {
			h.reject(connID, "patientId and patientName are required")
			return
		}
		h.Router.SubmitVitals(connID, req)

	case constants.MessageStartSimulation:
		var req models.SimulationRequest
		if err := decode(msg.Payload, &req); err != nil {
			h.reject(connID, "Invalid simulation payload")
			return
		}
		h.Router.StartSimulation(connID, req)

	case constants.MessageStopSimulation:
		h.Router.StopSimulation(connID)

	case constants.MessageUpdateLocation:
		var req models.LocationRequest
		if err := decode(msg.Payload, &req); err != nil {
			h.reject(connID, "Invalid location payload")
			return
		}
		if req.AmbulanceID == "" {
			h.reject(connID, "ambulanceId is required")
			return
		}
		if err := h.Router.SubmitLocation(connID, req); err != nil {
			h.reject(connID, err.Error())
		}

	case constants.MessageEmergencyAlert:
		var req models.AlertRequest
		if err := decode(msg.Payload, &req); err != nil {
			h.reject(connID, "Invalid alert payload")
			return
		}
		if req.PatientName == "" || req.Condition == "" {
			h.reject(connID, "patientName and condition are required")
			return
		}
		h.Router.SubmitAlert(connID, req)

	case constants.MessageCheckConnection:
		h.Router.CheckConnection(connID)

	default:
		h.reject(connID, fmt.Sprintf("Unknown message type %q", msg.Type))
	}
}

// reject answers a malformed or unauthorized message with an error ack.
func (h *WSHandler) reject(connID, message string) {
	h.Logger.Debug().Str("connection_id", connID).Str("reason", message).Msg("inbound message rejected")
	h.Router.Registry.Send(connID, models.Outbound{
		Type: constants.MessageError,
		Payload: models.ErrorAck{
			Status:    constants.StatusError,
			Message:   message,
			Timestamp: time.Now(),
		},
	})
}

// decode unmarshals a payload, treating an absent payload as empty.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}
