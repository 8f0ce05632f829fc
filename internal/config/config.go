package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STATUSBOT_"

// Config holds the plugin and gateway settings
type Config struct {
	// MonitorInterval is the monitor loop period in seconds; <= 0 disables it
	MonitorInterval int

	// Gateway
	Bind             string
	Port             int
	Secret           string
	TokenExpiryHours int
	RateLimit        float64 // requests per second per IP
	AllowedOrigins   []string
	AllowedIPs       []string
	TrustedProxies   []string // empty trusts no X-Forwarded-For

	// Sampling windows
	CPUWindowMS int
	NetWindowMS int
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		MonitorInterval:  0,
		Bind:             "127.0.0.1",
		Port:             8080,
		TokenExpiryHours: 90 * 24,
		RateLimit:        10,
		CPUWindowMS:      1000,
		NetWindowMS:      1000,
	}
}

// Load builds the configuration from defaults, the YAML file at path (a
// missing file is not an error), a .env file and STATUSBOT_* variables.
// Keys with values of the wrong type keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyYAML(data); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			log.Printf("Config file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.normalize()

	return cfg, nil
}

// applyYAML reads the flat key/value mapping
func (c *Config) applyYAML(data []byte) error {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.MonitorInterval = intValue(raw, "monitor_interval", c.MonitorInterval)
	c.Bind = stringValue(raw, "bind", c.Bind)
	c.Port = intValue(raw, "port", c.Port)
	c.Secret = stringValue(raw, "secret", c.Secret)
	c.TokenExpiryHours = intValue(raw, "token_expiry_hours", c.TokenExpiryHours)
	c.RateLimit = floatValue(raw, "rate_limit", c.RateLimit)
	c.AllowedOrigins = listValue(raw, "allowed_origins", c.AllowedOrigins)
	c.AllowedIPs = listValue(raw, "allowed_ips", c.AllowedIPs)
	c.TrustedProxies = listValue(raw, "trusted_proxies", c.TrustedProxies)
	c.CPUWindowMS = intValue(raw, "cpu_window_ms", c.CPUWindowMS)
	c.NetWindowMS = intValue(raw, "net_window_ms", c.NetWindowMS)
	return nil
}

func (c *Config) applyEnv() {
	c.MonitorInterval = envInt("MONITOR_INTERVAL", c.MonitorInterval)
	c.Bind = getenv("BIND", c.Bind)
	c.Port = envInt("PORT", c.Port)
	c.Secret = getenv("SECRET", c.Secret)
	c.TokenExpiryHours = envInt("TOKEN_EXPIRY_HOURS", c.TokenExpiryHours)
	c.RateLimit = envFloat("RATE_LIMIT", c.RateLimit)
	c.AllowedOrigins = envList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.AllowedIPs = envList("ALLOWED_IPS", c.AllowedIPs)
	c.TrustedProxies = envList("TRUSTED_PROXIES", c.TrustedProxies)
	c.CPUWindowMS = envInt("CPU_WINDOW_MS", c.CPUWindowMS)
	c.NetWindowMS = envInt("NET_WINDOW_MS", c.NetWindowMS)
}

func (c *Config) normalize() {
	def := Default()
	if c.MonitorInterval < 0 {
		c.MonitorInterval = 0
	}
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = def.Port
	}
	if c.TokenExpiryHours <= 0 {
		c.TokenExpiryHours = def.TokenExpiryHours
	}
	if c.RateLimit <= 0 {
		c.RateLimit = def.RateLimit
	}
	if c.CPUWindowMS <= 0 {
		c.CPUWindowMS = def.CPUWindowMS
	}
	if c.NetWindowMS <= 0 {
		c.NetWindowMS = def.NetWindowMS
	}
}

// MonitorPeriod returns the monitor loop interval, 0 when disabled
func (c *Config) MonitorPeriod() time.Duration {
	if c.MonitorInterval <= 0 {
		return 0
	}
	return time.Duration(c.MonitorInterval) * time.Second
}

func (c *Config) CPUWindow() time.Duration {
	return time.Duration(c.CPUWindowMS) * time.Millisecond
}

func (c *Config) NetWindow() time.Duration {
	return time.Duration(c.NetWindowMS) * time.Millisecond
}

func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryHours) * time.Hour
}

// ListenAddr returns host:port for the gateway
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// YAML value helpers

func intValue(raw map[string]interface{}, key string, def int) int {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	log.Printf("Warning: ignoring invalid value %v for %s", v, key)
	return def
}

func floatValue(raw map[string]interface{}, key string, def float64) float64 {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	log.Printf("Warning: ignoring invalid value %v for %s", v, key)
	return def
}

func stringValue(raw map[string]interface{}, key string, def string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case int, float64, bool:
		return fmt.Sprint(s)
	}
	log.Printf("Warning: ignoring invalid value %v for %s", v, key)
	return def
}

func listValue(raw map[string]interface{}, key string, def []string) []string {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch items := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return splitList(items)
	}
	log.Printf("Warning: ignoring invalid value %v for %s", v, key)
	return def
}

// Environment helpers

func getenv(k, def string) string {
	if v := os.Getenv(envPrefix + k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(envPrefix + k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(envPrefix + k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envList(k string, def []string) []string {
	if v := os.Getenv(envPrefix + k); v != "" {
		return splitList(v)
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
