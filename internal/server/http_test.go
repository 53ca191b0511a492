package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsgrid/vitals-relay/internal/dedup"
	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/internal/registry"
	"github.com/emsgrid/vitals-relay/internal/router"
	"github.com/emsgrid/vitals-relay/internal/simulator"
	"github.com/emsgrid/vitals-relay/internal/utils"
	"github.com/emsgrid/vitals-relay/pkg/token"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := zerolog.Nop()

	reg := registry.NewRegistry(2, logger)
	ded := dedup.NewEngine(time.Second, 15*time.Minute, 10*time.Minute, nil, logger)
	sims := simulator.NewManager(50*time.Millisecond, logger)
	rt := router.NewRouter(reg, ded, sims, nil, nil, nil, logger)
	ws := NewWSHandler(rt, 5*time.Second, logger)

	tokens, err := token.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	users := []utils.UserEntry{
		{Username: "paramedic.diaz", Password: "fieldpass", Name: "R. Diaz", Role: "source", AmbulanceID: "AMB001"},
		{Username: "nurse.jones", Password: "wardpass", Name: "A. Jones", Role: "subscriber", Department: "Emergency"},
	}

	srv := NewServer("127.0.0.1:0", "/ws", reg, ws, tokens, users, logger)
	srv.startedAt = time.Now()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		sims.StopAll()
		reg.Shutdown()
	})
	return srv, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.SourceClients)
	assert.Zero(t, health.SubscriberClients)
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLogin_Success(t *testing.T) {
	srv, ts := newTestServer(t)

	body, _ := json.Marshal(models.LoginRequest{Username: "nurse.jones", Password: "wardpass"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login models.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.True(t, login.Success)
	require.NotNil(t, login.User)
	assert.Equal(t, "subscriber", login.User.Role)
	assert.Equal(t, "Emergency", login.User.Department)

	claims, err := srv.Tokens.Validate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "nurse.jones", claims.Username)
	assert.Equal(t, "subscriber", claims.Role)
}

func TestLogin_BadCredentials(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(models.LoginRequest{Username: "nurse.jones", Password: "wrong"})
	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var login models.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.False(t, login.Success)
	assert.Empty(t, login.Token)
}

func TestLogin_MalformedBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
