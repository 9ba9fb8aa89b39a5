// Package config loads the daemon configuration from a YAML file with
// environment-variable overrides, mirroring the run-bundle environment
// variables described in the platform's external-interface contract.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// Sandstorm-Go daemon configuration
// =============================================================================

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Mongo      MongoConfig      `yaml:"mongo"`
}

type ServerConfig struct {
	Port               string `yaml:"port"`
	HTTPSPort          string `yaml:"https_port"`
	BindIP             string `yaml:"bind_ip"`
	Env                string `yaml:"env"`
	ShutdownTimeout    int    `yaml:"shutdown_timeout_sec"`
	BackendMetricsPort string `yaml:"backend_metrics_port"`
}

// PathsConfig locates the data root under which grains, apps, pids and
// sockets live (spec §6, "Filesystem layout under the data root").
type PathsConfig struct {
	DataRoot string `yaml:"data_root"`
}

func (p PathsConfig) AppsDir() string       { return p.DataRoot + "/apps" }
func (p PathsConfig) GrainsDir() string     { return p.DataRoot + "/grains" }
func (p PathsConfig) PidFile() string       { return p.DataRoot + "/pid/sandstorm.pid" }
func (p PathsConfig) APISocket() string     { return p.DataRoot + "/socket/api" }
func (p PathsConfig) ResolveSocket() string { return p.DataRoot + "/socket/resolve" }
func (p PathsConfig) WWWDir() string        { return p.DataRoot + "/www" }
func (p PathsConfig) PackagesDir() string   { return p.DataRoot + "/packages" }

type GatewayConfig struct {
	BaseURL                  string  `yaml:"base_url"`
	WildcardHost             string  `yaml:"wildcard_host"`
	DDPDefaultConnectionURL  string  `yaml:"ddp_default_connection_url"`
	MailURL                  string  `yaml:"mail_url"`
	UpdateChannel            string  `yaml:"update_channel"`
	SandcatsBaseDomain       string  `yaml:"sandcats_base_domain"`
	AllowDemoAccounts        bool    `yaml:"allow_demo_accounts"`
	AllowDevAccounts         bool    `yaml:"allow_dev_accounts"`
	IsTesting                bool    `yaml:"is_testing"`
	HideTroubleshooting      bool    `yaml:"hide_troubleshooting"`
	SessionPurgeSeconds      int     `yaml:"session_purge_seconds"`
	ForeignHostRefreshFactor float64 `yaml:"foreign_host_refresh_factor"`
	RedisAddr                string  `yaml:"redis_addr"`
}

type SupervisorConfig struct {
	DevMode         bool `yaml:"dev_mode"`
	IdleShutdownSec int  `yaml:"idle_shutdown_sec"`
	GraceSec        int  `yaml:"grace_sec"`
	LogRotateBytes  int  `yaml:"log_rotate_bytes"`
	LogCheckSec     int  `yaml:"log_check_sec"`
}

type SMTPConfig struct {
	ListenPort   string `yaml:"listen_port"`
	UpstreamAddr string `yaml:"upstream_addr"`
}

type MongoConfig struct {
	Port string `yaml:"port"`
}

// =============================================================================
// Singleton with environment overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton, loading config.yaml (or
// $CONFIG_PATH) and a local .env file on first call.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn("config: .env load failed", "error", err)
		}
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides maps the run-bundle environment variables (spec §6)
// onto the config tree.
func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.HTTPSPort = getEnv("HTTPS_PORT", c.Server.HTTPSPort)
	c.Server.BindIP = getEnv("BIND_IP", c.Server.BindIP)
	c.Mongo.Port = getEnv("MONGO_PORT", c.Mongo.Port)
	c.SMTP.ListenPort = getEnv("SMTP_LISTEN_PORT", c.SMTP.ListenPort)

	c.Gateway.BaseURL = getEnv("BASE_URL", c.Gateway.BaseURL)
	c.Gateway.WildcardHost = getEnv("WILDCARD_HOST", c.Gateway.WildcardHost)
	c.Gateway.DDPDefaultConnectionURL = getEnv("DDP_DEFAULT_CONNECTION_URL", c.Gateway.DDPDefaultConnectionURL)
	c.Gateway.MailURL = getEnv("MAIL_URL", c.Gateway.MailURL)
	c.Gateway.UpdateChannel = getEnv("UPDATE_CHANNEL", c.Gateway.UpdateChannel)
	c.Gateway.SandcatsBaseDomain = getEnv("SANDCATS_BASE_DOMAIN", c.Gateway.SandcatsBaseDomain)
	c.Gateway.AllowDemoAccounts = getEnvBool("ALLOW_DEMO_ACCOUNTS", c.Gateway.AllowDemoAccounts)
	c.Gateway.AllowDevAccounts = getEnvBool("ALLOW_DEV_ACCOUNTS", c.Gateway.AllowDevAccounts)
	c.Gateway.IsTesting = getEnvBool("IS_TESTING", c.Gateway.IsTesting)
	c.Gateway.HideTroubleshooting = getEnvBool("HIDE_TROUBLESHOOTING", c.Gateway.HideTroubleshooting)
	c.Gateway.RedisAddr = getEnv("GATEWAY_REDIS_ADDR", c.Gateway.RedisAddr)

	if root := getEnv("SANDSTORM_DATA_ROOT", ""); root != "" {
		c.Paths.DataRoot = root
	}

	c.Supervisor.DevMode = getEnvBool("SANDSTORM_DEV_MODE", c.Supervisor.DevMode)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "6080"
	}
	if c.Server.HTTPSPort == "" {
		c.Server.HTTPSPort = "6443"
	}
	if c.Server.BindIP == "" {
		c.Server.BindIP = "0.0.0.0"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.Server.BackendMetricsPort == "" {
		c.Server.BackendMetricsPort = "9090"
	}
	if c.Paths.DataRoot == "" {
		c.Paths.DataRoot = "/var/sandstorm"
	}
	if c.Gateway.SessionPurgeSeconds == 0 {
		c.Gateway.SessionPurgeSeconds = 120 // 2 minutes, spec §3
	}
	if c.Gateway.ForeignHostRefreshFactor == 0 {
		c.Gateway.ForeignHostRefreshFactor = 0.5 // refresh at TTL/2, spec §5
	}
	if c.Supervisor.IdleShutdownSec == 0 {
		c.Supervisor.IdleShutdownSec = 180
	}
	if c.Supervisor.GraceSec == 0 {
		c.Supervisor.GraceSec = 5
	}
	if c.Supervisor.LogRotateBytes == 0 {
		c.Supervisor.LogRotateBytes = 1 << 20 // 1 MiB, spec §4.1
	}
	if c.Supervisor.LogCheckSec == 0 {
		c.Supervisor.LogCheckSec = 300 // 5 minutes
	}
	if c.SMTP.ListenPort == "" {
		c.SMTP.ListenPort = "30025"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
