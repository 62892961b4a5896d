package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityFromFields(t *testing.T) {
	identity, err := identityFromFields(map[string]any{
		"accountId":   "acme",
		"deviceId":    "van-2",
		"description": "delivery van",
		"allowedIps":  []any{"10.1.2.3", "10.1.2.4"},
	}, "358741059372912")
	assert.NoError(t, err)
	assert.Equal(t, "acme", identity.AccountID)
	assert.Equal(t, "van-2", identity.DeviceID)
	assert.Equal(t, "delivery van", identity.Description)
	assert.Equal(t, "358741059372912", identity.ModemID)
	assert.Equal(t, []string{"10.1.2.3", "10.1.2.4"}, identity.AllowedIPs)
}

func TestIdentityFromFieldsModemOverride(t *testing.T) {
	identity, err := identityFromFields(map[string]any{
		"deviceId": "van-2",
		"modemId":  "999000111222333",
	}, "358741059372912")
	assert.NoError(t, err)
	assert.Equal(t, "999000111222333", identity.ModemID)
	assert.Nil(t, identity.AllowedIPs)
}

func TestIdentityFromFieldsNoDevice(t *testing.T) {
	_, err := identityFromFields(map[string]any{"accountId": "acme"}, "358741059372912")
	assert.Error(t, err)
}
