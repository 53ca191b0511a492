package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/mem"

	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/internal/registry"
	"github.com/emsgrid/vitals-relay/internal/utils"
	"github.com/emsgrid/vitals-relay/pkg/token"
)

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Status            string           `json:"status"`
	UptimeSeconds     int64            `json:"uptimeSeconds"`
	SourceClients     int              `json:"sourceClients"`
	SubscriberClients int              `json:"subscriberClients"`
	Memory            *MemoryStats     `json:"memory,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
}

// MemoryStats summarizes host memory usage.
type MemoryStats struct {
	TotalMB     uint64  `json:"totalMb"`
	UsedMB      uint64  `json:"usedMb"`
	UsedPercent float64 `json:"usedPercent"`
}

// Server owns the HTTP listener: the websocket endpoint plus the health
// and login APIs.
type Server struct {
	Address  string
	WSPath   string
	Registry *registry.Registry
	WS       *WSHandler
	Tokens   *token.Manager
	Users    []utils.UserEntry
	Logger   zerolog.Logger

	httpServer *http.Server
	startedAt  time.Time
	running    bool
}

// NewServer assembles the HTTP surface. wsPath defaults to /ws.
func NewServer(address, wsPath string, reg *registry.Registry, ws *WSHandler,
	tokens *token.Manager, users []utils.UserEntry, logger zerolog.Logger) *Server {

	if wsPath == "" {
		wsPath = "/ws"
	}
	return &Server{
		Address:  address,
		WSPath:   wsPath,
		Registry: reg,
		WS:       ws,
		Tokens:   tokens,
		Users:    users,
		Logger:   logger,
	}
}

// Routes returns the handler tree, exposed separately so tests can mount
// it on a test listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.WSPath, s.WS)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	return mux
}

// Start begins serving in the background. It returns once the listener
// goroutine is launched.
func (s *Server) Start() error {
	if s.running {
		return errors.New("server is already running")
	}

	s.httpServer = &http.Server{
		Addr:              s.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.startedAt = time.Now()
	s.running = true

	go func() {
		s.Logger.Info().Str("address", s.Address).Str("ws_path", s.WSPath).Msg("server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("server terminated unexpectedly")
		}
	}()
	return nil
}

// Stop shuts the listener down, letting in-flight requests drain.
func (s *Server) Stop() error {
	if !s.running {
		return errors.New("server is not running")
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sources, subscribers := s.Registry.Counts()
	resp := HealthResponse{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		SourceClients:     sources,
		SubscriberClients: subscribers,
		Timestamp:         time.Now(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.Memory = &MemoryStats{
			TotalMB:     vm.Total / (1 << 20),
			UsedMB:      vm.Used / (1 << 20),
			UsedPercent: vm.UsedPercent,
		}
	} else {
		s.Logger.Warn().Err(err).Msg("failed to read memory stats")
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.LoginResponse{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	user, ok := s.lookupUser(req.Username, req.Password)
	if !ok {
		s.Logger.Warn().Str("username", req.Username).Msg("failed login attempt")
		writeJSON(w, http.StatusUnauthorized, models.LoginResponse{
			Success: false,
			Error:   "invalid username or password",
		})
		return
	}

	signed, _, err := s.Tokens.Issue(user.Username, user.Role)
	if err != nil {
		s.Logger.Error().Err(err).Msg("failed to issue token")
		writeJSON(w, http.StatusInternalServerError, models.LoginResponse{
			Success: false,
			Error:   "failed to issue token",
		})
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Success: true,
		Message: "login successful",
		Token:   signed,
		User: &models.UserProfile{
			Username:    user.Username,
			Name:        user.Name,
			Role:        user.Role,
			Department:  user.Department,
			AmbulanceID: user.AmbulanceID,
		},
	})
}

func (s *Server) lookupUser(username, password string) (utils.UserEntry, bool) {
	for _, user := range s.Users {
		if user.Username == username && user.Password == password {
			return user, true
		}
	}
	return utils.UserEntry{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
