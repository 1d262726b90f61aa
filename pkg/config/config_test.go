package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	src := []byte(`
[device]
idcode = 0x12345678
addr_width_bytes = 8
default_mdrop_addr = 5
bus_backend = unix
bus_channel = /tmp/twd.sock
`)
	cfg, err := Load(src, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), cfg.IDCode)
	assert.Equal(t, 8, cfg.AddrWidthBytes)
	assert.Equal(t, uint8(5), cfg.DefaultMDropAddr)
	assert.Equal(t, "unix", cfg.BusBackend)
	assert.Equal(t, "/tmp/twd.sock", cfg.BusChannel)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load([]byte(`[device]`), nil)
	require.NoError(t, err)
	assert.Equal(t, Default().IDCode, cfg.IDCode)
	assert.Equal(t, Default().AddrWidthBytes, cfg.AddrWidthBytes)
}

func TestLoadRejectsOutOfRangeAddrWidth(t *testing.T) {
	_, err := Load([]byte("[device]\naddr_width_bytes = 9\n"), nil)
	assert.Error(t, err)
}

func TestLoadRejectsOutOfRangeMDropAddr(t *testing.T) {
	_, err := Load([]byte("[device]\ndefault_mdrop_addr = 16\n"), nil)
	assert.Error(t, err)
}
