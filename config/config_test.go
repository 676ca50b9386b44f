package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "consumer", cfg.Session.Role)
	assert.Equal(t, 30*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongTimeout)
	assert.Equal(t, 3*time.Second, cfg.Realtime.ReconnectDelay)
	assert.Equal(t, 5, cfg.Realtime.MaxReconnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.Tracking.MinInterval)
	assert.Equal(t, 10.0, cfg.Tracking.MinDisplacementMeters)
	assert.Equal(t, 20.0, cfg.Delivery.BaseFee)
	assert.Equal(t, 500.0, cfg.Delivery.FreeDeliveryThreshold)
	assert.Equal(t, 1000.0, cfg.Notification.AutoNotifyRadiusMeters)
	assert.Equal(t, 50, cfg.Notification.HistorySize)
	assert.Equal(t, 10*time.Minute, cfg.Notification.RenotifyCooldown)
	assert.Equal(t, 256, cfg.QRCode.Size)
	assert.Equal(t, "M", cfg.QRCode.ErrorCorrectionLevel)
	assert.Nil(t, cfg.PubSub, "pubsub stays disabled unless configured")
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Session.Role = "vendor"
	cfg.Realtime = &RealtimeConfig{MaxReconnectAttempts: 2, HeartbeatInterval: 5 * time.Second}
	cfg.ApplyDefaults()

	assert.Equal(t, "vendor", cfg.Session.Role)
	assert.Equal(t, 2, cfg.Realtime.MaxReconnectAttempts)
	// Pong timeout derives from the configured heartbeat interval.
	assert.Equal(t, 10*time.Second, cfg.Realtime.PongTimeout)
}
