package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"can_rx", snap.CANRx,
					"serial_rx", snap.SerialRx,
					"udp_tx", snap.UDPTx,
					"dropped", snap.Dropped,
					"incomplete", snap.Incomplete,
					"malformed", snap.Malformed,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
