package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/demo"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "wolfnet.json"

	// DefaultListen is the default game socket address.
	DefaultListen = ":27960"

	// DefaultHTTP is the default status and metrics address.
	DefaultHTTP = ":8080"
)

// Config represents the complete wolfnet.json configuration.
type Config struct {
	// Server contains the game server settings.
	Server ServerConfig `json:"server"`

	// Net contains channel and link simulation settings.
	Net NetConfig `json:"net"`

	// HTTP contains the status, metrics and WebSocket listener settings.
	HTTP HTTPConfig `json:"http"`

	// Demo contains recording and archive settings.
	Demo DemoConfig `json:"demo"`

	// Telemetry contains metrics and tracing settings.
	Telemetry TelemetryConfig `json:"telemetry"`

	configPath string
}

// ServerConfig mirrors server.Config with durations written as strings.
type ServerConfig struct {
	// Listen is the UDP address to bind.
	Listen string `json:"listen,omitempty"`

	Hostname   string `json:"hostname,omitempty"`
	MaxClients int    `json:"maxClients,omitempty"`
	FPS        int    `json:"fps,omitempty"`

	// Timeout and ZombieTime are Go durations (e.g., "40s").
	Timeout    string `json:"timeout,omitempty"`
	ZombieTime string `json:"zombieTime,omitempty"`

	MinRate             int `json:"minRate,omitempty"`
	MaxRate             int `json:"maxRate,omitempty"`
	DefaultRate         int `json:"defaultRate,omitempty"`
	DefaultSnaps        int `json:"defaultSnaps,omitempty"`
	MaxSnapshotEntities int `json:"maxSnapshotEntities,omitempty"`

	// RconPassword enables the remote console.
	RconPassword string `json:"rconPassword,omitempty"`
}

// NetConfig contains channel settings. Latency, Jitter and Loss wrap the
// game socket in a simulated bad link when any of them is set.
type NetConfig struct {
	Scramble      bool   `json:"scramble,omitempty"`
	ScrambleKey   uint32 `json:"scrambleKey,omitempty"`
	PaceFragments bool   `json:"paceFragments,omitempty"`
	ShowPackets   bool   `json:"showPackets,omitempty"`
	ShowDrop      bool   `json:"showDrop,omitempty"`

	Latency string  `json:"latency,omitempty"`
	Jitter  string  `json:"jitter,omitempty"`
	Loss    float64 `json:"loss,omitempty"`
}

// HTTPConfig contains the HTTP listener settings.
type HTTPConfig struct {
	// Addr is the listen address. Empty disables HTTP.
	Addr string `json:"addr"`

	// WebSocket accepts game clients on /ws.
	WebSocket bool `json:"websocket,omitempty"`

	// TrustedProxies lists the CIDR prefixes whose forwarding headers are
	// believed for WebSocket peers.
	TrustedProxies []string `json:"trustedProxies,omitempty"`
}

// DemoConfig contains demo recording settings.
type DemoConfig struct {
	// Dir archives finished demos on disk. Empty disables disk archives.
	Dir string `json:"dir,omitempty"`

	// Record is the client slot recorded when it enters the game.
	// Negative disables recording.
	Record int `json:"record"`

	// MaxSize caps a single demo in bytes.
	MaxSize int64 `json:"maxSize,omitempty"`

	// MaxAge removes archived demos older than this on startup (e.g., "168h").
	MaxAge string `json:"maxAge,omitempty"`

	// S3 archives finished demos to a bucket when Bucket is set.
	S3 demo.S3Config `json:"s3"`
}

// TelemetryConfig contains metrics and tracing settings.
type TelemetryConfig struct {
	// Metrics serves Prometheus metrics on /metrics.
	Metrics bool `json:"metrics"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`

	// TraceAddresses adds client addresses to spans.
	TraceAddresses bool `json:"traceAddresses,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:     DefaultListen,
			Hostname:   "wolfnet",
			MaxClients: 16,
			FPS:        20,
			Timeout:    "40s",
			ZombieTime: "2s",
		},
		HTTP: HTTPConfig{
			Addr: DefaultHTTP,
		},
		Demo: DemoConfig{
			Record:  -1,
			MaxSize: 256 << 20,
			MaxAge:  "168h",
		},
		Telemetry: TelemetryConfig{
			Metrics:   true,
			Namespace: "wolfnet",
		},
	}
}

// Load reads wolfnet.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. Missing
// fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("W100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("W100").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("W101").Wrap(err)
	}
	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOptional loads path when it exists and returns the defaults when it
// does not.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return New(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("W101").Wrap(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Newf(errors.CategoryConfig, "write %s", path).Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	d := New()
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.Timeout == "" {
		c.Server.Timeout = d.Server.Timeout
	}
	if c.Server.ZombieTime == "" {
		c.Server.ZombieTime = d.Server.ZombieTime
	}
	if c.Demo.MaxSize == 0 {
		c.Demo.MaxSize = d.Demo.MaxSize
	}
	if c.Telemetry.Namespace == "" {
		c.Telemetry.Namespace = d.Telemetry.Namespace
	}
}

// Validate checks the settings that the packages below do not check
// themselves, then builds the server config to run its checks too.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("W102").WithDetail("server.listen is empty")
	}
	if c.Net.Loss < 0 || c.Net.Loss > 1 {
		return errors.New("W102").WithDetail(fmt.Sprintf("net.loss %v not in [0, 1]", c.Net.Loss))
	}
	if _, err := c.DelayedOptions(); err != nil {
		return err
	}
	if _, err := c.TrustedProxies(); err != nil {
		return err
	}
	if _, err := duration("demo.maxAge", c.Demo.MaxAge); err != nil {
		return err
	}
	if _, err := c.ServerConfig(); err != nil {
		return err
	}
	return nil
}

// ServerConfig converts the server and net sections into a validated
// server.Config.
func (c *Config) ServerConfig() (*server.Config, error) {
	timeout, err := duration("server.timeout", c.Server.Timeout)
	if err != nil {
		return nil, err
	}
	zombie, err := duration("server.zombieTime", c.Server.ZombieTime)
	if err != nil {
		return nil, err
	}
	sc := server.DefaultConfig()
	sc.Hostname = c.Server.Hostname
	sc.MaxClients = c.Server.MaxClients
	sc.FPS = c.Server.FPS
	sc.Timeout = timeout
	sc.ZombieTime = zombie
	sc.RconPassword = c.Server.RconPassword
	if c.Server.MinRate != 0 {
		sc.MinRate = c.Server.MinRate
	}
	if c.Server.MaxRate != 0 {
		sc.MaxRate = c.Server.MaxRate
	}
	if c.Server.DefaultRate != 0 {
		sc.DefaultRate = c.Server.DefaultRate
	}
	if c.Server.DefaultSnaps != 0 {
		sc.DefaultSnaps = c.Server.DefaultSnaps
	}
	if c.Server.MaxSnapshotEntities != 0 {
		sc.MaxSnapshotEntities = c.Server.MaxSnapshotEntities
	}
	sc.Env = c.Env()
	if err := sc.Validate(); err != nil {
		return nil, errors.New("W102").Wrap(err)
	}
	return sc, nil
}

// Env returns the channel settings.
func (c *Config) Env() *netchan.Env {
	env := netchan.DefaultEnv()
	env.Scramble = c.Net.Scramble
	env.ScrambleKey = c.Net.ScrambleKey
	env.PaceFragments = c.Net.PaceFragments
	env.ShowPackets = c.Net.ShowPackets
	env.ShowDrop = c.Net.ShowDrop
	return env
}

// DelayedOptions returns the link simulation settings. SimulateLink
// reports whether they apply.
func (c *Config) DelayedOptions() (transport.DelayedOptions, error) {
	latency, err := duration("net.latency", c.Net.Latency)
	if err != nil {
		return transport.DelayedOptions{}, err
	}
	jitter, err := duration("net.jitter", c.Net.Jitter)
	if err != nil {
		return transport.DelayedOptions{}, err
	}
	return transport.DelayedOptions{Latency: latency, Jitter: jitter, Loss: c.Net.Loss}, nil
}

// SimulateLink reports whether the game socket is wrapped in a delay
// queue.
func (c *Config) SimulateLink() bool {
	return c.Net.Latency != "" || c.Net.Jitter != "" || c.Net.Loss > 0
}

// TrustedProxies parses HTTP.TrustedProxies.
func (c *Config) TrustedProxies() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.HTTP.TrustedProxies))
	for _, s := range c.HTTP.TrustedProxies {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, errors.New("W102").
				WithDetail("http.trustedProxies entry " + s + " is not a CIDR prefix").
				Wrap(err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}

// DemoMaxAge returns Demo.MaxAge, or zero when unset.
func (c *Config) DemoMaxAge() time.Duration {
	d, _ := duration("demo.maxAge", c.Demo.MaxAge)
	return d
}

func duration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("W102").
			WithDetail(field + " must be a duration such as \"30s\", got " + s).
			Wrap(err)
	}
	return d, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
