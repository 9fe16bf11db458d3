package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServerPort != 9000 {
		t.Fatalf("ServerPort = %d, want 9000", cfg.ServerPort)
	}
	if cfg.TransferDelaySecond != 3 {
		t.Fatalf("TransferDelaySecond = %v, want 3", cfg.TransferDelaySecond)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for a missing file: %v", err)
	}
	if cfg.ServerIPv4 != "127.0.0.1" {
		t.Fatalf("ServerIPv4 = %q, want default", cfg.ServerIPv4)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "server_ipv4: 10.0.0.5\nserver_port: 9500\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerIPv4 != "10.0.0.5" || cfg.ServerPort != 9500 {
		t.Fatalf("file override not applied: %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_port: 9500\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("SERVER_PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 9999 {
		t.Fatalf("ServerPort = %d, want env override 9999", cfg.ServerPort)
	}
}

func TestPeerPortAndServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got, want := cfg.PeerPort(3), cfg.ClientBasePort+3; got != want {
		t.Fatalf("PeerPort(3) = %d, want %d", got, want)
	}
	if got, want := cfg.ServerAddr(), "127.0.0.1:9000"; got != want {
		t.Fatalf("ServerAddr() = %q, want %q", got, want)
	}
}

func TestResolveOutboundIP(t *testing.T) {
	ip, err := ResolveOutboundIP()
	if err != nil {
		t.Skipf("no outbound route available in this environment: %v", err)
	}
	if ip == "" {
		t.Fatalf("ResolveOutboundIP returned empty string")
	}
}
