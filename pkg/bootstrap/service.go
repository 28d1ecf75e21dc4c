package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/health"
	"github.com/hellblazer/steward/pkg/log"
	"github.com/hellblazer/steward/pkg/metrics"
)

const (
	pidMarkerName     = "vector-store.pid"
	configFileName    = "service.yaml"
	storageDirName    = "storage"
	listenWait        = 30 * time.Second
	listenProbePeriod = 500 * time.Millisecond
	stopGrace         = 10 * time.Second
)

// Bootstrapper supervises the shared vector-store service: it issues
// the per-startup credential and TLS material, renders the service
// config, runs the binary as a child process, and watches for exit.
//
// An empty Service.Binary disables supervision; the service is assumed
// externally managed and only the health gate applies.
type Bootstrapper struct {
	cfg        config.Service
	serviceDir string
	runDir     string
	logger     zerolog.Logger

	gateTick   time.Duration
	gateBudget int

	mu      sync.Mutex
	cmd     *exec.Cmd
	token   string
	certPEM []byte
	done    chan struct{}
	exitErr error
}

// NewBootstrapper creates a supervisor from the coordinator's config
func NewBootstrapper(cfg *config.Config) *Bootstrapper {
	return &Bootstrapper{
		cfg:        cfg.Service,
		serviceDir: cfg.ServiceDir(),
		runDir:     cfg.RunDir(),
		logger:     log.WithComponent("bootstrap"),
		gateTick:   gateTick,
		gateBudget: gateBudget,
	}
}

// Enabled reports whether a service binary is configured
func (b *Bootstrapper) Enabled() bool {
	return b.cfg.Binary != ""
}

// Start provisions credentials and launches the service. It returns
// once the HTTP port accepts connections; readiness beyond the bare
// listener is the health gate's job.
func (b *Bootstrapper) Start(ctx context.Context) error {
	if !b.Enabled() {
		b.logger.Info().Msg("no service binary configured, assuming externally managed vector store")
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd != nil {
		return fmt.Errorf("vector store already started")
	}

	token, err := generateToken()
	if err != nil {
		return err
	}
	if _, err := writeToken(b.serviceDir, token); err != nil {
		return err
	}
	b.token = token

	hosts := []string{"127.0.0.1", "::1", "localhost", b.cfg.Host, b.cfg.Alias, b.cfg.ParentAlias}
	certPath, keyPath, err := ensureServerCert(b.serviceDir, hosts)
	if err != nil {
		return err
	}
	b.certPEM, err = os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	configPath, err := b.writeServiceConfig(certPath, keyPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, b.cfg.Binary, "--config-path", configPath)
	cmd.Stdout = &logWriter{logger: b.logger, level: zerolog.InfoLevel}
	cmd.Stderr = &logWriter{logger: b.logger, level: zerolog.WarnLevel}

	b.logger.Info().
		Str("binary", b.cfg.Binary).
		Str("host", b.cfg.Host).
		Int("http_port", b.cfg.HTTPPort).
		Int("grpc_port", b.cfg.GRPCPort).
		Msg("starting vector store")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start vector store: %w", err)
	}
	b.cmd = cmd
	b.done = make(chan struct{})

	if err := b.writePidMarker(cmd.Process.Pid); err != nil {
		b.logger.Warn().Err(err).Msg("failed to write pid marker")
	}

	go b.monitor(ctx, cmd)

	if err := b.waitForListen(ctx); err != nil {
		b.stopLocked()
		return err
	}

	b.logger.Info().Int("pid", cmd.Process.Pid).Msg("vector store listening")
	return nil
}

// waitForListen polls the HTTP port until it accepts connections.
// Callers hold the mutex.
func (b *Bootstrapper) waitForListen(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.HTTPPort)
	checker := health.NewTCPChecker(addr).WithTimeout(listenProbePeriod)

	deadline := time.NewTimer(listenWait)
	defer deadline.Stop()
	ticker := time.NewTicker(listenProbePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return fmt.Errorf("vector store exited during startup: %v", b.exitErr)
		case <-deadline.C:
			return fmt.Errorf("vector store did not bind %s within %s", addr, listenWait)
		case <-ticker.C:
			if checker.Check(ctx).Healthy {
				return nil
			}
		}
	}
}

// monitor waits on the child and records unexpected exits. It takes no
// locks: the exit error is published through the done channel close so
// Stop can hold the mutex while waiting.
func (b *Bootstrapper) monitor(ctx context.Context, cmd *exec.Cmd) {
	err := cmd.Wait()
	b.exitErr = err
	close(b.done)

	select {
	case <-ctx.Done():
		b.logger.Debug().Msg("vector store supervisor exiting")
		return
	default:
	}

	if err != nil {
		b.logger.Error().Err(err).Msg("vector store exited unexpectedly")
	} else {
		b.logger.Warn().Msg("vector store exited unexpectedly")
	}
	metrics.UpdateComponent("vector-store", false, "process exited")
}

// Stop terminates the service: SIGTERM, a grace period, then SIGKILL.
// Idempotent; stopping a never-started supervisor only clears markers.
func (b *Bootstrapper) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *Bootstrapper) stopLocked() error {
	defer b.removePidMarker()

	if b.cmd == nil || b.cmd.Process == nil {
		return nil
	}

	select {
	case <-b.done:
		// Already exited
		b.cmd = nil
		return nil
	default:
	}

	b.logger.Info().Msg("stopping vector store")
	if err := b.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		b.logger.Warn().Err(err).Msg("failed to send SIGTERM")
	}

	select {
	case <-b.done:
	case <-time.After(stopGrace):
		b.logger.Warn().Msg("vector store did not stop gracefully, killing")
		if err := b.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill vector store: %w", err)
		}
		<-b.done
	}

	b.cmd = nil
	b.logger.Info().Msg("vector store stopped")
	return nil
}

// Token returns the API credential issued at startup
func (b *Bootstrapper) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// CertPEM returns the PEM certificate the service presents, nil when
// externally managed
func (b *Bootstrapper) CertPEM() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.certPEM
}

// HeartbeatURL is the health endpoint the gate probes
func (b *Bootstrapper) HeartbeatURL() string {
	scheme := "http"
	if b.Enabled() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/healthz", scheme, b.cfg.Host, b.cfg.HTTPPort)
}

// GRPCTarget is the query port address the gate confirms
func (b *Bootstrapper) GRPCTarget() string {
	return fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.GRPCPort)
}

// Running reports whether the supervised process is alive
func (b *Bootstrapper) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cmd == nil {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// serviceConfig is the config file rendered for the vector store
type serviceConfig struct {
	Service struct {
		Host      string `yaml:"host"`
		HTTPPort  int    `yaml:"http_port"`
		GRPCPort  int    `yaml:"grpc_port"`
		EnableTLS bool   `yaml:"enable_tls"`
		APIKey    string `yaml:"api_key"`
	} `yaml:"service"`
	TLS struct {
		Cert string `yaml:"cert"`
		Key  string `yaml:"key"`
	} `yaml:"tls"`
	Storage struct {
		StoragePath string `yaml:"storage_path"`
	} `yaml:"storage"`
}

// writeServiceConfig renders the service's own config file. The token
// travels only through this file, never the environment.
func (b *Bootstrapper) writeServiceConfig(certPath, keyPath string) (string, error) {
	storageDir := filepath.Join(b.serviceDir, storageDirName)
	if err := os.MkdirAll(storageDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create storage dir: %w", err)
	}

	var sc serviceConfig
	sc.Service.Host = b.cfg.Host
	sc.Service.HTTPPort = b.cfg.HTTPPort
	sc.Service.GRPCPort = b.cfg.GRPCPort
	sc.Service.EnableTLS = true
	sc.Service.APIKey = b.token
	sc.TLS.Cert = certPath
	sc.TLS.Key = keyPath
	sc.Storage.StoragePath = storageDir

	data, err := yaml.Marshal(&sc)
	if err != nil {
		return "", fmt.Errorf("failed to render service config: %w", err)
	}

	path := filepath.Join(b.serviceDir, configFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write service config: %w", err)
	}
	return path, nil
}

func (b *Bootstrapper) pidPath() string {
	return filepath.Join(b.runDir, pidMarkerName)
}

func (b *Bootstrapper) writePidMarker(pid int) error {
	if err := os.MkdirAll(b.runDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(b.pidPath(), []byte(fmt.Sprintf("%d\n", pid)), 0o600)
}

func (b *Bootstrapper) removePidMarker() {
	if err := os.Remove(b.pidPath()); err != nil && !os.IsNotExist(err) {
		b.logger.Warn().Err(err).Msg("failed to remove pid marker")
	}
}

// logWriter adapts the service's output streams to the component logger
type logWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func (lw *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lw.logger.WithLevel(lw.level).Msg(line)
		}
	}
	return len(p), nil
}
