// Package config loads the device-configured, power-on-fixed DTM
// parameters from an INI file with gopkg.in/ini.v1.
package config

import (
	"fmt"
	"log/slog"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/twdtm/dtm/pkg/csr"
)

// Device holds the parameters fixed at device-construction time: they
// cannot be changed by the wire protocol itself (only MDROPADDR can be
// changed at runtime, via W.CSR, and that only sets the *default* seed
// here).
type Device struct {
	IDCode           uint32
	AddrWidthBytes   int
	DefaultMDropAddr uint8
	BusBackend       string
	BusChannel       string
}

// Default returns the out-of-the-box device parameters: IDCODE
// 0xdeadbeef, a 4-byte ADDR register, MDROPADDR 0.
func Default() Device {
	return Device{
		IDCode:           0xdeadbeef,
		AddrWidthBytes:   4,
		DefaultMDropAddr: 0,
		BusBackend:       "mem",
	}
}

// Load parses an INI file (path, []byte, or io.Reader, per ini.Load) of
// the shape:
//
//	[device]
//	idcode = 0xdeadbeef
//	addr_width_bytes = 4
//	default_mdrop_addr = 0
//	bus_backend = mem
//	bus_channel =
//
// Any key not present falls back to Default().
func Load(source any, log *slog.Logger) (Device, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := Default()

	f, err := ini.Load(source)
	if err != nil {
		return Device{}, fmt.Errorf("config: load: %w", err)
	}
	sec := f.Section("device")

	if k := sec.Key("idcode"); k.String() != "" {
		v, err := parseUint32(k.String())
		if err != nil {
			return Device{}, fmt.Errorf("config: idcode: %w", err)
		}
		cfg.IDCode = v
	}
	if k := sec.Key("addr_width_bytes"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return Device{}, fmt.Errorf("config: addr_width_bytes: %w", err)
		}
		if err := csr.ValidateAddrWidth(v); err != nil {
			return Device{}, fmt.Errorf("config: addr_width_bytes %d: %w", v, err)
		}
		cfg.AddrWidthBytes = v
	}
	if k := sec.Key("default_mdrop_addr"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return Device{}, fmt.Errorf("config: default_mdrop_addr: %w", err)
		}
		if v < 0 || v > 15 {
			return Device{}, fmt.Errorf("config: default_mdrop_addr must be 0-15, got %d", v)
		}
		cfg.DefaultMDropAddr = uint8(v)
	}
	if k := sec.Key("bus_backend"); k.String() != "" {
		cfg.BusBackend = k.String()
	}
	cfg.BusChannel = sec.Key("bus_channel").String()

	log.Debug("device configuration loaded",
		"idcode", cfg.IDCode, "addr_width_bytes", cfg.AddrWidthBytes,
		"default_mdrop_addr", cfg.DefaultMDropAddr, "bus_backend", cfg.BusBackend)
	return cfg, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
