/*
Package config loads and validates Steward daemon configuration.

Configuration is layered: compiled-in defaults, then an optional YAML
file, then STEWARD_* environment variables. Environment always wins, so
a unit file or container spec can override any file setting without
editing it.

# Sources

	defaults  →  /etc/steward/config.yaml (or --config)  →  STEWARD_* env

Example file:

	data_dir: /var/lib/steward
	registry_refresh: 5m
	pool:
	  min_warm: 2
	  max_warm: 5
	  idle_timeout: 30m
	  check_interval: 60s
	  enabled: true
	worker:
	  image: ghcr.io/hellblazer/agent-worker:v3.0.0
	  memory: 2g
	  cpus: 2.0
	  pids_limit: 256
	service:
	  binary: qdrant
	  http_port: 6333
	  grpc_port: 6334
	log:
	  level: info

Durations use time.ParseDuration syntax; memory sizes accept k/m/g
suffixes.

# Validation

Load validates the merged result before returning: pool bounds ordered,
intervals positive, image non-empty, ports in range and distinct, memory
parseable. Violations are wrapped in types.ErrConfiguration and the
daemon refuses to start, before any container or file is touched.

# Usage

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("invalid configuration", err)
	}

	limits := cfg.WorkerLimits()
	pool := cfg.PoolConfig()

Derived paths (SessionsDir, LocksDir, ServiceDir, RunDir) keep all
daemon state under data_dir so a single directory holds everything
Steward writes.

# See Also

  - pkg/types: ConfigurationError and the shared settings types
  - pkg/coordinator: Consumes the validated Config at startup
*/
package config
