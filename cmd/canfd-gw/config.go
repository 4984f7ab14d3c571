package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type appConfig struct {
	canIf           string // positional 1: CAN interface (socketcan) or device path (serial)
	dest            string // positional 2: destination host:port
	backend         string
	baud            int
	serialReadTO    time.Duration
	sndbuf          int
	rtPriority      bool
	lockMemory      bool
	logFormat       string
	logLevel        string
	logFile         string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

// fileConfig mirrors the optional YAML config file. Only tuning options
// live here; interface and destination are always positional arguments.
type fileConfig struct {
	Backend            string `yaml:"backend"`
	Baud               *int   `yaml:"baud"`
	SerialReadTimeout  string `yaml:"serial_read_timeout"`
	SendBuffer         *int   `yaml:"send_buffer"`
	RealtimePriority   *bool  `yaml:"realtime_priority"`
	LockMemory         *bool  `yaml:"lock_memory"`
	LogFormat          string `yaml:"log_format"`
	LogLevel           string `yaml:"log_level"`
	LogFile            string `yaml:"log_file"`
	MetricsAddr        string `yaml:"metrics_addr"`
	LogMetricsInterval string `yaml:"log_metrics_interval"`
	MDNSEnable         *bool  `yaml:"mdns_enable"`
	MDNSName           string `yaml:"mdns_name"`
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: canfd-gw [flags] <can_interface> <dest_host:port>\n")
	fmt.Fprintf(fs.Output(), "Example: canfd-gw can0 192.168.1.100:5000\n\nFlags:\n")
	fs.PrintDefaults()
}

// parseConfig parses args (without the program name). Precedence per
// option: flag > CANFD_GW_* environment > config file > default.
func parseConfig(args []string) (*appConfig, bool, error) {
	cfg := &appConfig{}
	fs := flag.NewFlagSet("canfd-gw", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }

	configPath := fs.String("config", "", "Optional YAML config file")
	backend := fs.String("backend", "socketcan", "Frame source backend: socketcan|serial")
	baud := fs.Int("baud", 115200, "Serial baud rate (when --backend=serial)")
	serialReadTO := fs.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	sndbuf := fs.Int("sndbuf", 0, "UDP send buffer size hint in bytes (0 = 1 MiB default)")
	rtPrio := fs.Bool("rt", false, "Request SCHED_FIFO real-time priority (best effort)")
	lockMem := fs.Bool("lock-mem", false, "Lock process memory pages (best effort)")
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	logFile := fs.String("log-file", "", "Rotated log file path; empty logs to stderr")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := fs.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := fs.Bool("mdns-enable", false, "Advertise the metrics endpoint via mDNS")
	mdnsName := fs.String("mdns-name", "", "mDNS instance name (default canfd-gw-<hostname>)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if *showVersion {
		return nil, true, nil
	}

	// Track which flags were explicitly set to give them precedence over env and file.
	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.backend = *backend
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.sndbuf = *sndbuf
	cfg.rtPriority = *rtPrio
	cfg.lockMemory = *lockMem
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.logFile = *logFile
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if *configPath != "" {
		if err := applyFileConfig(cfg, *configPath, setFlags); err != nil {
			return nil, false, err
		}
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, false, err
	}

	rest := fs.Args()
	if len(rest) != 2 {
		usage(fs)
		return nil, false, fmt.Errorf("expected 2 arguments, got %d", len(rest))
	}
	cfg.canIf = rest[0]
	cfg.dest = rest[1]

	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// validate performs semantic validation of the parsed configuration.
// It does not attempt to open devices or sockets – only checks values.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "socketcan", "serial":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if c.canIf == "" {
		return errors.New("empty interface argument")
	}
	if _, _, err := net.SplitHostPort(c.dest); err != nil {
		return fmt.Errorf("invalid destination %q (expected host:port): %w", c.dest, err)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return errors.New("serial-read-timeout must be > 0")
	}
	if c.sndbuf < 0 {
		return fmt.Errorf("sndbuf must be >= 0 (got %d)", c.sndbuf)
	}
	if c.logMetricsEvery < 0 {
		return errors.New("log-metrics-interval must be >= 0")
	}
	return nil
}

// applyFileConfig overlays values from a YAML file onto cfg for every
// option not explicitly set by flag. Environment variables applied later
// still beat the file.
func applyFileConfig(c *appConfig, path string, set map[string]struct{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, ok := set["backend"]; !ok && fc.Backend != "" {
		c.backend = fc.Backend
	}
	if _, ok := set["baud"]; !ok && fc.Baud != nil {
		c.baud = *fc.Baud
	}
	if _, ok := set["serial-read-timeout"]; !ok && fc.SerialReadTimeout != "" {
		d, err := time.ParseDuration(fc.SerialReadTimeout)
		if err != nil {
			return fmt.Errorf("config serial_read_timeout: %w", err)
		}
		c.serialReadTO = d
	}
	if _, ok := set["sndbuf"]; !ok && fc.SendBuffer != nil {
		c.sndbuf = *fc.SendBuffer
	}
	if _, ok := set["rt"]; !ok && fc.RealtimePriority != nil {
		c.rtPriority = *fc.RealtimePriority
	}
	if _, ok := set["lock-mem"]; !ok && fc.LockMemory != nil {
		c.lockMemory = *fc.LockMemory
	}
	if _, ok := set["log-format"]; !ok && fc.LogFormat != "" {
		c.logFormat = fc.LogFormat
	}
	if _, ok := set["log-level"]; !ok && fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if _, ok := set["log-file"]; !ok && fc.LogFile != "" {
		c.logFile = fc.LogFile
	}
	if _, ok := set["metrics-addr"]; !ok && fc.MetricsAddr != "" {
		c.metricsAddr = fc.MetricsAddr
	}
	if _, ok := set["log-metrics-interval"]; !ok && fc.LogMetricsInterval != "" {
		d, err := time.ParseDuration(fc.LogMetricsInterval)
		if err != nil {
			return fmt.Errorf("config log_metrics_interval: %w", err)
		}
		c.logMetricsEvery = d
	}
	if _, ok := set["mdns-enable"]; !ok && fc.MDNSEnable != nil {
		c.mdnsEnable = *fc.MDNSEnable
	}
	if _, ok := set["mdns-name"]; !ok && fc.MDNSName != "" {
		c.mdnsName = fc.MDNSName
	}
	return nil
}

// applyEnvOverrides maps CANFD_GW_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored.
// Durations accept Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["backend"]; !ok {
		if v, ok := get("CANFD_GW_BACKEND"); ok && v != "" {
			c.backend = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("CANFD_GW_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CANFD_GW_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["serial-read-timeout"]; !ok {
		if v, ok := get("CANFD_GW_SERIAL_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.serialReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CANFD_GW_SERIAL_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["sndbuf"]; !ok {
		if v, ok := get("CANFD_GW_SNDBUF"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.sndbuf = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CANFD_GW_SNDBUF: %w", err)
			}
		}
	}
	if _, ok := set["rt"]; !ok {
		if v, ok := get("CANFD_GW_RT"); ok && v != "" {
			c.rtPriority = parseBoolLax(v, c.rtPriority)
		}
	}
	if _, ok := set["lock-mem"]; !ok {
		if v, ok := get("CANFD_GW_LOCK_MEM"); ok && v != "" {
			c.lockMemory = parseBoolLax(v, c.lockMemory)
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CANFD_GW_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CANFD_GW_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["log-file"]; !ok {
		if v, ok := get("CANFD_GW_LOG_FILE"); ok && v != "" {
			c.logFile = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CANFD_GW_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("CANFD_GW_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CANFD_GW_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CANFD_GW_MDNS_ENABLE"); ok && v != "" {
			c.mdnsEnable = parseBoolLax(v, c.mdnsEnable)
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("CANFD_GW_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}

func parseBoolLax(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
