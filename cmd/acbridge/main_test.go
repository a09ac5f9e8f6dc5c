package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// writeConfig writes content to a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// brokerAvailable reports whether an MQTT broker listens on 127.0.0.1:1883.
func brokerAvailable() bool {
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ACBRIDGE_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("ACBRIDGE_CONFIG", "/etc/acbridge/config.yaml")
	if got := getConfigPath(""); got != "/etc/acbridge/config.yaml" {
		t.Errorf("getConfigPath() with env = %q", got)
	}

	if got := getConfigPath("/tmp/flag.yaml"); got != "/tmp/flag.yaml" {
		t.Errorf("getConfigPath() with flag = %q, want the flag", got)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "acbridge "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"serve", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not found", name)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag missing")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "bridge: [not, a, map")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail with unparseable config")
	}
}

func TestRun_InvalidNamespace(t *testing.T) {
	path := writeConfig(t, `
bridge:
  namespace: "ac/+"
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("run() error = %v, want config validation error", err)
	}
}

func TestRun_BrokerUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}

	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "acbridge-test-unreachable"
  connect_timeout: 1
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil || !strings.Contains(err.Error(), "MQTT") {
		t.Fatalf("run() error = %v, want MQTT connect failure", err)
	}
}

// TestRun_StartupAndShutdown runs the whole bridge against a local broker.
func TestRun_StartupAndShutdown(t *testing.T) {
	if testing.Short() || !brokerAvailable() {
		t.Skip("requires MQTT broker at 127.0.0.1:1883")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "acbridge-test-startup"
database:
  enabled: true
  path: "`+dbPath+`"
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(port)+`
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("history database not created: %v", err)
	}
}
