package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/log"
)

// stubBinary writes an executable shell script standing in for the
// vector store binary
func stubBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qdrant")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newServiceBootstrapper(t *testing.T, binary string, httpPort, grpcPort int) *Bootstrapper {
	t.Helper()
	dir := t.TempDir()
	return &Bootstrapper{
		cfg: config.Service{
			Binary:   binary,
			Host:     "127.0.0.1",
			HTTPPort: httpPort,
			GRPCPort: grpcPort,
		},
		serviceDir: filepath.Join(dir, "vector-store"),
		runDir:     filepath.Join(dir, "run"),
		logger:     log.WithComponent("bootstrap"),
		gateTick:   gateTick,
		gateBudget: gateBudget,
	}
}

func TestStartSupervisesAndStops(t *testing.T) {
	// Stand in for the service's listener so waitForListen succeeds
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })
	port := lis.Addr().(*net.TCPAddr).Port

	b := newServiceBootstrapper(t, stubBinary(t, "exec sleep 60"), port, port+1)
	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.Running())
	pid := b.cmd.Process.Pid

	assert.Len(t, b.Token(), 64)
	info, err := os.Stat(filepath.Join(b.serviceDir, tokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o400), info.Mode().Perm())
	assert.NotEmpty(t, b.CertPEM())

	marker, err := os.ReadFile(b.pidPath())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", pid), string(marker))

	data, err := os.ReadFile(filepath.Join(b.serviceDir, configFileName))
	require.NoError(t, err)
	var sc serviceConfig
	require.NoError(t, yaml.Unmarshal(data, &sc))
	assert.True(t, sc.Service.EnableTLS)
	assert.Equal(t, b.Token(), sc.Service.APIKey)
	assert.Equal(t, port, sc.Service.HTTPPort)
	assert.DirExists(t, sc.Storage.StoragePath)

	err = b.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, b.Stop())
	assert.False(t, b.Running())
	assert.NoFileExists(t, b.pidPath())

	require.NoError(t, b.Stop())
}

func TestStartReportsEarlyExit(t *testing.T) {
	// Grab a port with nothing behind it
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	b := newServiceBootstrapper(t, stubBinary(t, "exit 3"), port, port+1)
	err = b.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited during startup")
	assert.Contains(t, err.Error(), "exit status 3")
	assert.False(t, b.Running())
	assert.NoFileExists(t, b.pidPath())
}

func TestStartMissingBinary(t *testing.T) {
	b := newServiceBootstrapper(t, filepath.Join(t.TempDir(), "missing"), 16333, 16334)
	err := b.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start vector store")
	assert.False(t, b.Running())
}

func TestStartDisabledAssumesExternalService(t *testing.T) {
	b := newServiceBootstrapper(t, "", 6333, 6334)
	assert.False(t, b.Enabled())
	require.NoError(t, b.Start(context.Background()))
	assert.False(t, b.Running())
	assert.Nil(t, b.CertPEM())
}

func TestServiceEndpoints(t *testing.T) {
	b := newServiceBootstrapper(t, "qdrant", 6333, 6334)
	assert.Equal(t, "https://127.0.0.1:6333/healthz", b.HeartbeatURL())
	assert.Equal(t, "127.0.0.1:6334", b.GRPCTarget())

	b.cfg.Binary = ""
	assert.Equal(t, "http://127.0.0.1:6333/healthz", b.HeartbeatURL())
}

func TestLogWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	lw := &logWriter{logger: zerolog.New(&buf), level: zerolog.InfoLevel}

	input := []byte("starting collections\n\n  gRPC listening  \n")
	n, err := lw.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "starting collections")
	assert.Contains(t, lines[1], "gRPC listening")
}
