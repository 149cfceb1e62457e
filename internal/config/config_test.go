package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func code(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New()
	if cfg.Server.Listen != DefaultListen || cfg.HTTP.Addr != DefaultHTTP {
		t.Errorf("addresses = %q %q", cfg.Server.Listen, cfg.HTTP.Addr)
	}
	if cfg.Demo.Record != -1 {
		t.Errorf("demo.record = %d, want -1", cfg.Demo.Record)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `{
  "server": {"hostname": "arena", "maxClients": 4, "timeout": "10s", "minRate": 2000},
  "net": {"scramble": true, "scrambleKey": 99, "latency": "50ms", "loss": 0.1},
  "http": {"addr": "", "trustedProxies": ["10.1.2.3/8"]},
  "demo": {"dir": "demos", "record": 0}
}`)
	if !Exists(dir) {
		t.Fatal("Exists = false")
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != filepath.Join(dir, ConfigFileName) {
		t.Errorf("Path = %q", cfg.Path())
	}
	if cfg.Server.Listen != DefaultListen || cfg.Server.FPS != 20 {
		t.Errorf("defaults lost: %+v", cfg.Server)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("http.addr = %q, want disabled", cfg.HTTP.Addr)
	}

	sc, err := cfg.ServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if sc.Hostname != "arena" || sc.MaxClients != 4 || sc.Timeout != 10*time.Second || sc.MinRate != 2000 {
		t.Errorf("server config = %+v", sc)
	}
	if sc.MaxRate != server.DefaultConfig().MaxRate {
		t.Errorf("max rate = %d", sc.MaxRate)
	}
	if !sc.Env.Scramble || sc.Env.ScrambleKey != 99 {
		t.Errorf("env = %+v", sc.Env)
	}

	if !cfg.SimulateLink() {
		t.Error("SimulateLink = false")
	}
	opts, err := cfg.DelayedOptions()
	if err != nil || opts.Latency != 50*time.Millisecond || opts.Loss != 0.1 {
		t.Errorf("DelayedOptions = %+v, %v", opts, err)
	}

	prefixes, err := cfg.TrustedProxies()
	if err != nil || len(prefixes) != 1 || prefixes[0].String() != "10.0.0.0/8" {
		t.Errorf("TrustedProxies = %v, %v", prefixes, err)
	}
	if cfg.DemoMaxAge() != 168*time.Hour {
		t.Errorf("DemoMaxAge = %v", cfg.DemoMaxAge())
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(t.TempDir()); code(err) != "W100" {
		t.Errorf("missing file err = %v", err)
	}
	if _, err := Load(writeConfig(t, `{"server": `)); code(err) != "W101" {
		t.Errorf("bad json err = %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || cfg.Server.Listen != DefaultListen {
		t.Errorf("LoadOptional(missing) = %+v, %v", cfg, err)
	}
	cfg, err = LoadOptional("")
	if err != nil || cfg == nil {
		t.Errorf("LoadOptional(\"\") = %v, %v", cfg, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty_listen", func(c *Config) { c.Server.Listen = "" }},
		{"bad_loss", func(c *Config) { c.Net.Loss = 2 }},
		{"bad_latency", func(c *Config) { c.Net.Latency = "soon" }},
		{"negative_jitter", func(c *Config) { c.Net.Jitter = "-1s" }},
		{"bad_proxy", func(c *Config) { c.HTTP.TrustedProxies = []string{"10.0.0.1"} }},
		{"bad_max_age", func(c *Config) { c.Demo.MaxAge = "week" }},
		{"bad_timeout", func(c *Config) { c.Server.Timeout = "x" }},
		{"too_many_clients", func(c *Config) { c.Server.MaxClients = 100000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if code(err) != "W102" {
				t.Errorf("Validate() = %v, want W102", err)
			}
		})
	}
}

func TestValidate_WrapsServerError(t *testing.T) {
	cfg := New()
	cfg.Server.FPS = -1
	if err := cfg.Validate(); !stderrors.Is(err, server.ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want server.ErrInvalidConfig", err)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := New()
	cfg.Server.Hostname = "saved"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Hostname != "saved" || loaded.Demo.Record != -1 {
		t.Errorf("loaded = %+v", loaded)
	}
}
