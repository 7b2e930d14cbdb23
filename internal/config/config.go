package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Backend   BackendConfig   `yaml:"backend"`
	Logging   LoggingConfig   `yaml:"logging"`
	Injection InjectionConfig `yaml:"injection"`
	Hooks     HooksConfig     `yaml:"hooks"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c ListenConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type BackendConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Auth dials the backend with an Xbox Live token.
	Auth       bool   `yaml:"auth"`
	TokenCache string `yaml:"token_cache"`
}

func (c BackendConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// InjectionConfig holds the type patterns used to find the session list of
// the proxy at runtime.
type InjectionConfig struct {
	ServerType     string `yaml:"server_type"`
	ConnectionType string `yaml:"connection_type"`
	ListenerType   string `yaml:"listener_type"`
}

type HooksConfig struct {
	LogPackets  bool     `yaml:"log_packets"`
	DropPackets []uint32 `yaml:"drop_packets"`
}

func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Host: "0.0.0.0", Port: 19132},
		Backend: BackendConfig{Host: "127.0.0.1", Port: 19133, TokenCache: "token.json"},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Injection: InjectionConfig{
			ServerType:     `\*proxy\.Server$`,
			ConnectionType: `\*proxy\.Network$`,
			ListenerType:   `\*proxy\.Network$`,
		},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Backend.Host == "" {
		errs = append(errs, errors.New("backend.host is empty"))
	}
	if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
		errs = append(errs, fmt.Errorf("backend.port %d out of range", c.Backend.Port))
	}
	if c.Backend.Auth && c.Backend.TokenCache == "" {
		errs = append(errs, errors.New("backend.token_cache is required with backend.auth"))
	}
	switch c.Logging.Format {
	case "", "auto", "console", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of auto, console, json, text", c.Logging.Format))
	}
	for _, p := range []struct{ key, expr string }{
		{"injection.server_type", c.Injection.ServerType},
		{"injection.connection_type", c.Injection.ConnectionType},
		{"injection.listener_type", c.Injection.ListenerType},
	} {
		if _, err := regexp.Compile(p.expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.key, err))
		}
	}
	if c.Injection.ConnectionType == "" && c.Injection.ListenerType == "" {
		errs = append(errs, errors.New("injection needs connection_type or listener_type"))
	}
	return errors.Join(errs...)
}
