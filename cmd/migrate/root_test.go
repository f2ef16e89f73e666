package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[receipts]
backend = "postgres"

[database]
url = "postgres://cfg@db/geogov"
`), 0o600))
	t.Setenv("GEOGOV_ENV", "")

	t.Run("config", func(t *testing.T) {
		t.Setenv(envDSN, "")
		m := &migrator{configPath: path}
		require.NoError(t, m.resolve())
		assert.Equal(t, "postgres://cfg@db/geogov", m.dsn)
	})

	t.Run("env wins over config", func(t *testing.T) {
		t.Setenv(envDSN, "postgres://env@db/geogov")
		m := &migrator{configPath: path}
		require.NoError(t, m.resolve())
		assert.Equal(t, "postgres://env@db/geogov", m.dsn)
	})

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(envDSN, "postgres://env@db/geogov")
		m := &migrator{configPath: path, dsn: "postgres://flag@db/geogov"}
		require.NoError(t, m.resolve())
		assert.Equal(t, "postgres://flag@db/geogov", m.dsn)
	})

	t.Run("discrete database fields", func(t *testing.T) {
		t.Setenv(envDSN, "")
		discrete := filepath.Join(dir, "discrete.toml")
		require.NoError(t, os.WriteFile(discrete, []byte(`
[receipts]
backend = "postgres"

[database]
host = "db"
port = 5433
name = "geogov"
user = "audit"
password = "p@ss"
ssl_mode = "require"
`), 0o600))
		m := &migrator{configPath: discrete}
		require.NoError(t, m.resolve())
		assert.Equal(t, "postgres://audit:p%40ss@db:5433/geogov?sslmode=require", m.dsn)
	})

	t.Run("default without postgres backend", func(t *testing.T) {
		t.Setenv(envDSN, "")
		m := &migrator{configPath: filepath.Join(dir, "missing.toml")}
		require.NoError(t, m.resolve())
		assert.Equal(t, defaultDSN, m.dsn)
	})
}
