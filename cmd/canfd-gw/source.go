package main

import (
	"fmt"
	"log/slog"

	"github.com/rahul91115/canfd-eth-gateway/internal/gateway"
	"github.com/rahul91115/canfd-eth-gateway/internal/serial"
	"github.com/rahul91115/canfd-eth-gateway/internal/socketcan"
)

// Hooks for tests (overridden in unit tests).
var (
	openSocketCANDevice = func(iface string) (gateway.Source, error) { return socketcan.Open(iface) }
	openSerialPort      = serial.Open
)

// initSource opens the configured frame source. Failure is a startup
// failure; the source is owned by the gateway loop for the process
// lifetime and never reopened.
func initSource(cfg *appConfig, l *slog.Logger) (gateway.Source, error) {
	switch cfg.backend {
	case "socketcan":
		src, err := openSocketCANDevice(cfg.canIf)
		if err != nil {
			return nil, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
		}
		l.Info("socketcan_open", "if", cfg.canIf)
		return src, nil
	case "serial":
		sp, err := openSerialPort(cfg.canIf, cfg.baud, cfg.serialReadTO)
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", cfg.canIf, err)
		}
		l.Info("serial_open", "device", cfg.canIf, "baud", cfg.baud)
		return serial.NewSource(sp), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use socketcan|serial)", cfg.backend)
	}
}
