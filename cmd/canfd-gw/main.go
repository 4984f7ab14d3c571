package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/rahul91115/canfd-eth-gateway/internal/gateway"
	"github.com/rahul91115/canfd-eth-gateway/internal/metrics"
	"github.com/rahul91115/canfd-eth-gateway/internal/rt"
	"github.com/rahul91115/canfd-eth-gateway/internal/udp"
)

// Helper implementations live in dedicated files: version.go, config.go,
// logger.go, source.go, mdns.go, metrics_logger.go.

func main() {
	os.Exit(run())
}

func run() int {
	cfg, showVersion, err := parseConfig(os.Args[1:])
	if showVersion {
		fmt.Printf("canfd-gw %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}
	l := setupLogger(cfg)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	// Best-effort OS tuning before any endpoint is opened.
	rt.Apply(rt.Options{RealtimePriority: cfg.rtPriority, LockMemory: cfg.lockMemory}, l)

	src, err := initSource(cfg, l)
	if err != nil {
		l.Error("source_init_error", "error", err)
		return 1
	}
	sink, err := udp.Open(cfg.dest, cfg.sndbuf)
	if err != nil {
		_ = src.Close()
		l.Error("sink_init_error", "error", err)
		return 1
	}
	l.Info("udp_open", "dest", sink.Dest().String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	running := make(chan struct{})
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-running:
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()

		cleanupMDNS, merr := startMDNS(ctx, cfg, metricsPort(cfg.metricsAddr))
		if merr != nil {
			l.Warn("mdns_start_failed", "error", merr)
		} else {
			defer cleanupMDNS()
		}
	}

	gw := gateway.New(
		gateway.WithSource(src),
		gateway.WithSink(sink),
		gateway.WithLogger(l),
	)
	errCh := make(chan error, 1)
	go func() {
		close(running)
		errCh <- gw.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
		// Closing the source unblocks the loop's pending read.
		_ = src.Close()
		<-errCh
	case err := <-errCh:
		if err != nil {
			l.Error("gateway_error", "error", err)
			code = 1
		}
		cancel()
		_ = src.Close()
	}
	_ = sink.Close()
	wg.Wait()
	return code
}

// metricsPort extracts the numeric port from a listen address for the
// mDNS advertisement; 0 if it cannot be determined.
func metricsPort(addr string) int {
	if _, p, err := net.SplitHostPort(addr); err == nil {
		if pn, perr := strconv.Atoi(p); perr == nil {
			return pn
		}
	}
	return 0
}
