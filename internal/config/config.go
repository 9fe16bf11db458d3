// Package config loads the peer/registry configuration: environment
// variables first, with an optional YAML file providing defaults for
// local development. Environment variables always win.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// autoAddress is the sentinel value for CLIENT_PUBLIC_IPv4 meaning "resolve
// an outbound-reachable interface address automatically".
const autoAddress = "auto"

// Config holds the recognised environment-driven options.
type Config struct {
	ServerIPv4     string `yaml:"server_ipv4"`
	ServerPort     int    `yaml:"server_port"`
	ClientBindHost string `yaml:"client_bind_host"`
	// ClientPublicIPv4 is the address advertised to other peers. May be
	// the literal "auto", resolved at load time via ResolveOutboundIP.
	ClientPublicIPv4    string        `yaml:"client_public_ipv4"`
	ClientBasePort      int           `yaml:"client_base_port"`
	TransferDelay       time.Duration `yaml:"-"`
	TransferDelaySecond float64       `yaml:"transfer_delay_seconds"`
}

// DefaultConfig returns the configuration used when neither a file nor an
// environment variable sets a value.
func DefaultConfig() *Config {
	return &Config{
		ServerIPv4:          "127.0.0.1",
		ServerPort:          9000,
		ClientBindHost:      "0.0.0.0",
		ClientPublicIPv4:    "127.0.0.1",
		ClientBasePort:      9100,
		TransferDelaySecond: 3,
		TransferDelay:       3 * time.Second,
	}
}

// Load builds the effective configuration: DefaultConfig, overlaid by the
// YAML file at path (if path is non-empty and the file exists), overlaid
// by recognised environment variables. ClientPublicIPv4 of "auto" is then
// resolved to a concrete outbound address.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	mergeEnv(cfg)
	cfg.TransferDelay = time.Duration(cfg.TransferDelaySecond * float64(time.Second))

	if cfg.ClientPublicIPv4 == autoAddress {
		ip, err := ResolveOutboundIP()
		if err != nil {
			return nil, fmt.Errorf("config: resolving auto public address: %w", err)
		}
		cfg.ClientPublicIPv4 = ip
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("SERVER_IPv4"); v != "" {
		cfg.ServerIPv4 = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ServerPort = n
		}
	}
	if v := os.Getenv("CLIENT_BIND_HOST"); v != "" {
		cfg.ClientBindHost = v
	}
	if v := os.Getenv("CLIENT_PUBLIC_IPv4"); v != "" {
		cfg.ClientPublicIPv4 = v
	}
	if v := os.Getenv("CLIENT_BASE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ClientBasePort = n
		}
	}
	if v := os.Getenv("TRANSFER_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TransferDelaySecond = f
		}
	}
}

// Save writes cfg to path as YAML, for operators who want to capture a
// generated configuration (e.g. after auto-resolving the public address).
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// PeerPort returns the port peer id should listen on / be reached at:
// CLIENT_BASE_PORT + id.
func (c *Config) PeerPort(id int) int {
	return c.ClientBasePort + id
}

// ServerAddr returns the registry's host:port.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.ServerIPv4, strconv.Itoa(c.ServerPort))
}

// ResolveOutboundIP finds the local address used to reach the public
// internet, without sending any actual traffic: UDP dial doesn't transmit
// until data is written, so this only triggers local route resolution.
func ResolveOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("config: resolving outbound address: %w", err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("config: unexpected local address type %T", conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}
