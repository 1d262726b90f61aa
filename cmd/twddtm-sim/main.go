// Command twddtm-sim runs a standalone TWD DTM device over a pluggable
// downstream bus backend, with an optional JSON debug gateway exposed
// over HTTP. It has no real DCK/DI/DO pins to drive, so the register
// unit is instead poked through pkg/gateway/http; the bus side can be
// pointed at a real or simulated APB slave via -bus-backend.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/twdtm/dtm/pkg/apb"
	_ "github.com/twdtm/dtm/pkg/apb/memslave"
	_ "github.com/twdtm/dtm/pkg/apb/virtual"
	"github.com/twdtm/dtm/pkg/config"
	"github.com/twdtm/dtm/pkg/dtm"
	gatewayhttp "github.com/twdtm/dtm/pkg/gateway/http"
)

const (
	defaultConfigPath = ""
	defaultBusBackend = "mem"
	defaultBusChannel = ""
	defaultHTTPAddr   = ":8090"
	defaultTick       = 1 * time.Millisecond
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	configPath := flag.String("config", defaultConfigPath, "device INI config path (empty uses built-in defaults)")
	busBackend := flag.String("bus-backend", defaultBusBackend, "downstream APB bus backend, e.g. mem, unix")
	busChannel := flag.String("bus-channel", defaultBusChannel, "bus backend channel, e.g. a unix socket path")
	httpAddr := flag.String("http", defaultHTTPAddr, "debug gateway listen address, empty disables it")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath, logger)
		if err != nil {
			fmt.Printf("failed to load config %v: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	// explicit flags win over whatever the config file (or its absence)
	// set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus-backend":
			cfg.BusBackend = *busBackend
		case "bus-channel":
			cfg.BusChannel = *busChannel
		}
	})

	slave, err := apb.NewSlave(cfg.BusBackend, cfg.BusChannel)
	if err != nil {
		fmt.Printf("failed to create bus backend %q: %v\n", cfg.BusBackend, err)
		os.Exit(1)
	}

	device := dtm.NewDevice(logger, dtm.Config{
		IDCode:           cfg.IDCode,
		AddrWidthBytes:   cfg.AddrWidthBytes,
		DefaultMDropAddr: cfg.DefaultMDropAddr,
	}, slave)

	logger.Info("device constructed",
		"idcode", fmt.Sprintf("0x%x", cfg.IDCode),
		"addr_width_bytes", cfg.AddrWidthBytes,
		"bus_backend", cfg.BusBackend)

	go func() {
		ticker := time.NewTicker(defaultTick)
		defer ticker.Stop()
		for range ticker.C {
			device.StepBus()
		}
	}()

	if *httpAddr == "" {
		select {}
	}

	gw := gatewayhttp.NewServer(device, logger)
	logger.Info("serving debug gateway", "addr", *httpAddr)
	if err := gw.ListenAndServe(*httpAddr); err != nil {
		fmt.Printf("gateway stopped: %v\n", err)
		os.Exit(1)
	}
}
