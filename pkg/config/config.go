package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hellblazer/steward/pkg/types"
)

// Duration decodes "30m" style values from YAML into a time.Duration
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all configuration for the steward daemon
type Config struct {
	DataDir         string   `yaml:"data_dir"`
	RegistryRefresh Duration `yaml:"registry_refresh"`

	Pool    Pool    `yaml:"pool"`
	Worker  Worker  `yaml:"worker"`
	Service Service `yaml:"service"`
	API     API     `yaml:"api"`
	Log     Log     `yaml:"log"`
}

// Pool controls the warm worker pool
type Pool struct {
	MinWarm       int      `yaml:"min_warm"`
	MaxWarm       int      `yaml:"max_warm"`
	IdleTimeout   Duration `yaml:"idle_timeout"`
	CheckInterval Duration `yaml:"check_interval"`
	Enabled       bool     `yaml:"enabled"`
}

// Worker controls how worker containers are launched
type Worker struct {
	Image         string   `yaml:"image"`
	Memory        string   `yaml:"memory"`
	CPUs          float64  `yaml:"cpus"`
	PidsLimit     int64    `yaml:"pids_limit"`
	SkipPrefetch  bool     `yaml:"skip_prefetch"`
	LazyPull      bool     `yaml:"lazy_pull"`
	AllowedImages []string `yaml:"allowed_images"`
	ProjectRoots  []string `yaml:"project_roots"`

	// MemoryBytes is derived from Memory by Validate
	MemoryBytes int64 `yaml:"-"`
}

// Service controls the shared vector-store service
type Service struct {
	Binary      string `yaml:"binary"`
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	GRPCPort    int    `yaml:"grpc_port"`
	Alias       string `yaml:"alias"`
	ParentAlias string `yaml:"parent_alias"`
}

// API controls the local status endpoint
type API struct {
	Listen string `yaml:"listen"`
}

// Log controls log output
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file or environment
// overrides are present
func Default() *Config {
	return &Config{
		DataDir:         "/var/lib/steward",
		RegistryRefresh: Duration(5 * time.Minute),
		Pool: Pool{
			MinWarm:       2,
			MaxWarm:       5,
			IdleTimeout:   Duration(30 * time.Minute),
			CheckInterval: Duration(60 * time.Second),
			Enabled:       true,
		},
		Worker: Worker{
			Image:     "ghcr.io/hellblazer/agent-worker:v3.0.0",
			Memory:    "2g",
			CPUs:      2.0,
			PidsLimit: 256,
			AllowedImages: []string{
				"ghcr.io/hellblazer/agent-worker:v3.0.0",
				"ghcr.io/hellblazer/agent-worker-python:v3.0.0",
				"ghcr.io/hellblazer/agent-worker-go:v3.0.0",
				"ghcr.io/hellblazer/agent-worker-node:v3.0.0",
			},
			ProjectRoots: []string{"/home", "/srv", "/tmp/steward-projects"},
		},
		Service: Service{
			Binary:      "qdrant",
			Host:        "127.0.0.1",
			HTTPPort:    6333,
			GRPCPort:    6334,
			Alias:       "steward-vectors",
			ParentAlias: "host.docker.internal",
		},
		API: API{Listen: "127.0.0.1:7333"},
		Log: Log{Level: "info", JSON: false},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty), then STEWARD_* environment
// overrides, then validation
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", types.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file %s: %v", types.ErrConfiguration, path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg fields from STEWARD_* environment variables
func applyEnv(cfg *Config) error {
	envString("STEWARD_DATA_DIR", &cfg.DataDir)
	envString("STEWARD_WORKER_IMAGE", &cfg.Worker.Image)
	envString("STEWARD_WORKER_MEMORY", &cfg.Worker.Memory)
	envString("STEWARD_SERVICE_BINARY", &cfg.Service.Binary)
	envString("STEWARD_SERVICE_HOST", &cfg.Service.Host)
	envString("STEWARD_SERVICE_ALIAS", &cfg.Service.Alias)
	envString("STEWARD_PARENT_ALIAS", &cfg.Service.ParentAlias)
	envString("STEWARD_API_LISTEN", &cfg.API.Listen)
	envString("STEWARD_LOG_LEVEL", &cfg.Log.Level)
	envList("STEWARD_WORKER_ALLOWED_IMAGES", &cfg.Worker.AllowedImages)
	envList("STEWARD_PROJECT_ROOTS", &cfg.Worker.ProjectRoots)

	if err := envInt("STEWARD_POOL_MIN_WARM", &cfg.Pool.MinWarm); err != nil {
		return err
	}
	if err := envInt("STEWARD_POOL_MAX_WARM", &cfg.Pool.MaxWarm); err != nil {
		return err
	}
	if err := envInt("STEWARD_SERVICE_HTTP_PORT", &cfg.Service.HTTPPort); err != nil {
		return err
	}
	if err := envInt("STEWARD_SERVICE_GRPC_PORT", &cfg.Service.GRPCPort); err != nil {
		return err
	}
	if err := envInt64("STEWARD_WORKER_PIDS_LIMIT", &cfg.Worker.PidsLimit); err != nil {
		return err
	}
	if err := envFloat("STEWARD_WORKER_CPUS", &cfg.Worker.CPUs); err != nil {
		return err
	}
	if err := envBool("STEWARD_POOL_ENABLED", &cfg.Pool.Enabled); err != nil {
		return err
	}
	if err := envBool("STEWARD_SKIP_IMAGE_PREFETCH", &cfg.Worker.SkipPrefetch); err != nil {
		return err
	}
	if err := envBool("STEWARD_LAZY_IMAGE_PULL", &cfg.Worker.LazyPull); err != nil {
		return err
	}
	if err := envBool("STEWARD_LOG_JSON", &cfg.Log.JSON); err != nil {
		return err
	}
	if err := envDuration("STEWARD_POOL_IDLE_TIMEOUT", &cfg.Pool.IdleTimeout); err != nil {
		return err
	}
	if err := envDuration("STEWARD_POOL_CHECK_INTERVAL", &cfg.Pool.CheckInterval); err != nil {
		return err
	}
	if err := envDuration("STEWARD_REGISTRY_REFRESH", &cfg.RegistryRefresh); err != nil {
		return err
	}
	return nil
}

// Validate checks invariants and derives computed fields. Violations
// are ConfigurationError: fatal, before any side effects.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", types.ErrConfiguration)
	}
	if c.Pool.MinWarm < 0 {
		return fmt.Errorf("%w: pool.min_warm must not be negative, got %d", types.ErrConfiguration, c.Pool.MinWarm)
	}
	if c.Pool.MaxWarm < c.Pool.MinWarm {
		return fmt.Errorf("%w: pool.max_warm (%d) must not be below pool.min_warm (%d)",
			types.ErrConfiguration, c.Pool.MaxWarm, c.Pool.MinWarm)
	}
	if c.Pool.IdleTimeout <= 0 {
		return fmt.Errorf("%w: pool.idle_timeout must be positive", types.ErrConfiguration)
	}
	if c.Pool.CheckInterval <= 0 {
		return fmt.Errorf("%w: pool.check_interval must be positive", types.ErrConfiguration)
	}
	if c.RegistryRefresh <= 0 {
		return fmt.Errorf("%w: registry_refresh must be positive", types.ErrConfiguration)
	}
	if c.Worker.Image == "" {
		return fmt.Errorf("%w: worker.image must not be empty", types.ErrConfiguration)
	}
	if c.Worker.CPUs <= 0 {
		return fmt.Errorf("%w: worker.cpus must be positive, got %v", types.ErrConfiguration, c.Worker.CPUs)
	}
	if c.Worker.PidsLimit < 0 {
		return fmt.Errorf("%w: worker.pids_limit must not be negative, got %d", types.ErrConfiguration, c.Worker.PidsLimit)
	}
	if err := validPort(c.Service.HTTPPort, "service.http_port"); err != nil {
		return err
	}
	if err := validPort(c.Service.GRPCPort, "service.grpc_port"); err != nil {
		return err
	}
	if c.Service.HTTPPort == c.Service.GRPCPort {
		return fmt.Errorf("%w: service.http_port and service.grpc_port must differ", types.ErrConfiguration)
	}

	bytes, err := ParseMemory(c.Worker.Memory)
	if err != nil {
		return fmt.Errorf("%w: invalid worker.memory: %v", types.ErrConfiguration, err)
	}
	c.Worker.MemoryBytes = bytes
	return nil
}

// WorkerLimits returns the resource limits for new workers. Validate
// must have run first.
func (c *Config) WorkerLimits() types.ResourceLimits {
	return types.ResourceLimits{
		MemoryBytes: c.Worker.MemoryBytes,
		CPUs:        c.Worker.CPUs,
		PidsLimit:   c.Worker.PidsLimit,
	}
}

// PoolConfig converts the pool section to the shared pool settings type
func (c *Config) PoolConfig() types.PoolConfig {
	return types.PoolConfig{
		MinWarm:       c.Pool.MinWarm,
		MaxWarm:       c.Pool.MaxWarm,
		IdleTimeout:   time.Duration(c.Pool.IdleTimeout),
		CheckInterval: time.Duration(c.Pool.CheckInterval),
	}
}

// SessionsDir is where session metadata files live
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// LocksDir is where allocation lock directories live
func (c *Config) LocksDir() string {
	return filepath.Join(c.DataDir, "locks")
}

// ServiceDir is where service state (token, certs, pid, storage) lives
func (c *Config) ServiceDir() string {
	return filepath.Join(c.DataDir, "service")
}

// RunDir is where daemon pid markers live
func (c *Config) RunDir() string {
	return filepath.Join(c.DataDir, "run")
}

// ParseMemory converts a human memory size ("512m", "2g", "1024k", or
// plain bytes) to a byte count
func ParseMemory(s string) (int64, error) {
	value := strings.TrimSpace(strings.ToLower(s))
	if value == "" {
		return 0, fmt.Errorf("memory size must not be empty")
	}

	multiplier := int64(1)
	switch value[len(value)-1] {
	case 'k':
		multiplier = 1 << 10
		value = value[:len(value)-1]
	case 'm':
		multiplier = 1 << 20
		value = value[:len(value)-1]
	case 'g':
		multiplier = 1 << 30
		value = value[:len(value)-1]
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("memory size must be positive, got %q", s)
	}
	return n * multiplier, nil
}

func validPort(port int, key string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %s must be between 1 and 65535, got %d", types.ErrConfiguration, key, port)
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		*dst = out
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q: %v", types.ErrConfiguration, key, v, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q: %v", types.ErrConfiguration, key, v, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q: %v", types.ErrConfiguration, key, v, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q: %v", types.ErrConfiguration, key, v, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q: %v", types.ErrConfiguration, key, v, err)
	}
	*dst = Duration(d)
	return nil
}
