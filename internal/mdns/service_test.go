package mdns

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceType(t *testing.T) {
	assert.Equal(t, "_podible._tcp", ServiceType)
}

func TestNewService(t *testing.T) {
	s := NewService(testLogger())
	require.NotNil(t, s)
	assert.Nil(t, s.server)
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	s := NewService(testLogger())
	s.Stop()
	s.Stop()
}

func TestStartRejectsBadPort(t *testing.T) {
	s := NewService(testLogger())
	defer s.Stop()

	err := s.Start("not-a-port")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
