package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssueAndValidate(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	signed, expiresAt, err := m.Issue("nurse.jones", "subscriber")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "nurse.jones", claims.Username)
	assert.Equal(t, "subscriber", claims.Role)
}

func TestManager_RejectsTamperedToken(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	other, err := NewManager("different-secret", time.Hour)
	require.NoError(t, err)

	signed, _, err := other.Issue("nurse.jones", "subscriber")
	require.NoError(t, err)

	_, err = m.Validate(signed)
	assert.Error(t, err)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	m, err := NewManager("test-secret", time.Nanosecond)
	require.NoError(t, err)

	signed, _, err := m.Issue("nurse.jones", "subscriber")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = m.Validate(signed)
	assert.Error(t, err)
}

func TestNewManager_EmptySecret(t *testing.T) {
	_, err := NewManager("", time.Hour)
	assert.Error(t, err)
}
