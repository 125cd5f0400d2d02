package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/lock"
)

func setEnv(t *testing.T, kv ...string) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LEAVE_LOCK_BACKEND", "local")
	t.Setenv("LEAVE_DB_PATH", filepath.Join(t.TempDir(), "leave.db"))
	for i := 0; i+1 < len(kv); i += 2 {
		t.Setenv(kv[i], kv[i+1])
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewApp_LocalLock(t *testing.T) {
	setEnv(t)
	cfg, err := loadConfig("", "")
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.redis)
	assert.IsType(t, &lock.Local{}, a.coordinator.Locker)
	assert.Same(t, a.metrics, a.coordinator.Recorder)
}

func TestNewApp_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, "LEAVE_LOCK_BACKEND", "redis", "REDIS_ADDR", mr.Addr())
	cfg, err := loadConfig("", "")
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.redis)
	assert.IsType(t, &lock.Redis{}, a.coordinator.Locker)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	setEnv(t, "LEAVE_LOCK_BACKEND", "redis", "REDIS_ADDR", addr)
	cfg, err := loadConfig("", "")
	require.NoError(t, err)

	_, err = newApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCommands_SeedThenBalance(t *testing.T) {
	setEnv(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = run(t, "seed", "exhausted", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded scenario exhausted")

	out, err = run(t, "balance", "eng-erin", "--db", db)
	require.NoError(t, err)
	var bal map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	assert.Equal(t, float64(24), bal["annual_quota"])
	assert.Equal(t, float64(2), bal["remaining"])

	_, err = run(t, "balance", "nobody", "--db", db)
	assert.ErrorContains(t, err, "no employee")

	_, err = run(t, "seed", "unknown", "--db", db)
	assert.Error(t, err)
}
