package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/dellis86/sidekick/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.TelemetryConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_UnreachableServer(t *testing.T) {
	_, err := Connect(config.TelemetryConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // nothing listens here
		Token:   "test",
		Org:     "org",
		Bucket:  "bucket",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestRecordEvent_DisconnectedIsNoop(t *testing.T) {
	c := &Client{}

	// Must not panic with no write API.
	c.RecordEvent("s-1", "spawn")
	c.RecordReconnectDelay("s-1", 2, 2*time.Second)
	c.Flush()
}

func TestClose_NilClientIsNoop(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
