package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atomwire/ingest/pkg/config"
)

func TestRun_StartsAndStops(t *testing.T) {
	configContent := `
server:
  listen: "127.0.0.1:0"
database:
  dsn: ":memory:"
  max_open_conns: 1
  max_idle_conns: 1
schedule:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx, cfg, false))
}

func TestSetupLog(t *testing.T) {
	// must not panic in either mode, secrets filtered out
	setupLog(false)
	setupLog(true, "some-secret", "")
}
