package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWSURL         = "wss://api.venue.example/ws"
	DefaultRestURL       = "https://api.venue.example"
	DefaultDashboardAddr = ":8080"
	DefaultSnapshotDir   = "./wal/snapshots"

	DefaultBatchInterval        = 100 * time.Millisecond
	DefaultHeartbeatInterval    = 20 * time.Second
	DefaultTokenRefreshInterval = 8 * time.Minute

	DefaultHistoryLimit     = 1000
	DefaultRecentFillsLimit = 200
)

type Config struct {
	WSURL         string
	RestURL       string
	DashboardAddr string
	TLSDomains    []string
	CertCacheDir  string
	SnapshotDir   string

	BatchInterval        time.Duration
	HeartbeatInterval    time.Duration
	TokenRefreshInterval time.Duration

	HistoryLimit     int
	RecentFillsLimit int

	Simulate      bool
	SimulatorAddr string
}

type ConfigTmp struct {
	WSURL         string   `yaml:"ws_url"`
	RestURL       string   `yaml:"rest_url"`
	DashboardAddr string   `yaml:"dashboard_addr"`
	TLSDomains    []string `yaml:"tls_domains,omitempty"`
	CertCacheDir  string   `yaml:"cert_cache_dir,omitempty"`
	SnapshotDir   string   `yaml:"snapshot_dir,omitempty"`

	BatchInterval        time.Duration `yaml:"batch_interval,omitempty"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval,omitempty"`
	TokenRefreshInterval time.Duration `yaml:"token_refresh_interval,omitempty"`

	HistoryLimit     int `yaml:"history_limit,omitempty"`
	RecentFillsLimit int `yaml:"recent_fills_limit,omitempty"`

	Simulate      bool   `yaml:"simulate,omitempty"`
	SimulatorAddr string `yaml:"simulator_addr,omitempty"`
}

func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	wsURL := flag.String("ws", DefaultWSURL, "venue websocket url")
	restURL := flag.String("rest", DefaultRestURL, "venue rest api url")
	addr := flag.String("addr", DefaultDashboardAddr, "dashboard listen address")
	simulate := flag.Bool("simulate", false, "run against a local synthetic venue")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		WSURL:         *wsURL,
		RestURL:       *restURL,
		DashboardAddr: *addr,
		Simulate:      *simulate,
	}
	return withDefaults(cfg)
}

// Load reads a yaml config from path, bypassing CLI flags. Used after
// the setup wizard writes its generated file.
func Load(path string) (Config, error) {
	return getYaml(path)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}

	cfg := Config{
		WSURL:                tmp.WSURL,
		RestURL:              tmp.RestURL,
		DashboardAddr:        tmp.DashboardAddr,
		TLSDomains:           tmp.TLSDomains,
		CertCacheDir:         tmp.CertCacheDir,
		SnapshotDir:          tmp.SnapshotDir,
		BatchInterval:        tmp.BatchInterval,
		HeartbeatInterval:    tmp.HeartbeatInterval,
		TokenRefreshInterval: tmp.TokenRefreshInterval,
		HistoryLimit:         tmp.HistoryLimit,
		RecentFillsLimit:     tmp.RecentFillsLimit,
		Simulate:             tmp.Simulate,
		SimulatorAddr:        tmp.SimulatorAddr,
	}
	return withDefaults(cfg)
}

func withDefaults(cfg Config) (Config, error) {
	if cfg.WSURL == "" {
		cfg.WSURL = DefaultWSURL
	}
	if cfg.RestURL == "" {
		cfg.RestURL = DefaultRestURL
	}
	if cfg.DashboardAddr == "" {
		cfg.DashboardAddr = DefaultDashboardAddr
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = DefaultSnapshotDir
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = DefaultBatchInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.TokenRefreshInterval <= 0 {
		cfg.TokenRefreshInterval = DefaultTokenRefreshInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.RecentFillsLimit <= 0 {
		cfg.RecentFillsLimit = DefaultRecentFillsLimit
	}
	if cfg.Simulate && cfg.SimulatorAddr == "" {
		cfg.SimulatorAddr = "127.0.0.1:9550"
	}
	if len(cfg.TLSDomains) > 0 && cfg.CertCacheDir == "" {
		cfg.CertCacheDir = "cert-cache"
	}

	if cfg.BatchInterval > time.Second {
		return Config{}, fmt.Errorf("batch_interval %s is too coarse for a live dashboard, max 1s", cfg.BatchInterval)
	}
	return cfg, nil
}
