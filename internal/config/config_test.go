package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8500", cfg.ListenAddr)
	assert.Equal(t, "jsonlines", cfg.Store.Kind)
	assert.True(t, cfg.Devices.AutoRegister)
	assert.Contains(t, cfg.Dialects, "default")
	assert.Equal(t, 3.0, cfg.Dialects["default"].MinimumSpeedKPH)
}

func TestLoad(t *testing.T) {
	raw := `
listenAddr: ":9500"
idleTimeoutSec: 120
store:
  kind: grpc
  target: "localhost:22000"
redis:
  addr: "localhost:6379"
devices:
  autoRegister: false
  accountId: acme
  known:
    "123456789012345": truck-7
dialects:
  tk10x:
    minimumSpeedKPH: 5
    digitalInputMask: 255
    useLastValidGPS: true
geozones:
  - id: depot
    accountId: acme
    latitude: 51.5
    longitude: -0.1
    radiusM: 500
`
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	assert.NoError(t, err)

	assert.Equal(t, ":9500", cfg.ListenAddr)
	assert.Equal(t, 120, cfg.IdleTimeoutSec)
	assert.Equal(t, "grpc", cfg.Store.Kind)
	assert.Equal(t, "localhost:22000", cfg.Store.Target)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.Devices.AutoRegister)
	assert.Equal(t, "truck-7", cfg.Devices.Known["123456789012345"])

	assert.Len(t, cfg.Geozones, 1)
	assert.Equal(t, "depot", cfg.Geozones[0].ID)
	assert.Equal(t, 500.0, cfg.Geozones[0].RadiusM)

	// Dialect sections from the file land next to the built-in "default".
	tk10x := cfg.DialectConfig("tk10x")
	assert.Equal(t, 5.0, tk10x.MinimumSpeedKPH)
	assert.Equal(t, int64(255), tk10x.DigitalInputMask)
	assert.Contains(t, cfg.Dialects, "default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDialectConfigFallback(t *testing.T) {
	cfg := Default()

	fallback := cfg.DialectConfig("astra")
	assert.Equal(t, cfg.Dialects["default"], fallback)

	cfg.Dialects["astra"] = Dialect{MinimumSpeedKPH: 1.5}
	assert.Equal(t, 1.5, cfg.DialectConfig("astra").MinimumSpeedKPH)
}
