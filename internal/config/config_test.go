package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
couchdb:
  url: http://localhost:5984
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	require.Equal(t, "obsidian", cfg.CouchDB.Database)
	require.Equal(t, "Clippings", cfg.Vault.BasePath)
	require.True(t, cfg.Vault.DateFolders)
	require.Equal(t, 5, cfg.Vault.MaxRetries)
	require.Equal(t, 2, cfg.Relay.Concurrency)
	require.False(t, cfg.Relay.Enabled)
	require.Equal(t, 180, cfg.Pipeline.DeadlineSeconds)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, 180*time.Second, cfg.PipelineDeadline())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
couchdb:
  url: http://couch:5984
  database: notes
vault:
  base_path: Web
  date_folders: false
  max_retries: 3
relay:
  enabled: true
  server: http://picgo:36677
  secret: hunter2
  concurrency: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "notes", cfg.CouchDB.Database)
	require.Equal(t, "Web", cfg.Vault.BasePath)
	require.False(t, cfg.Vault.DateFolders)
	require.Equal(t, 3, cfg.Vault.MaxRetries)
	require.True(t, cfg.Relay.Enabled)
	require.Equal(t, 4, cfg.Relay.Concurrency)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			HTTP:    HTTPConfig{TimeoutSeconds: 30},
			CouchDB: CouchDBConfig{URL: "http://localhost:5984", Database: "obsidian"},
			Vault:   VaultConfig{MaxRetries: 5},
		}
	}

	require.NoError(t, base().Validate())

	noCouch := base()
	noCouch.CouchDB.URL = ""
	require.Error(t, noCouch.Validate())

	badPort := base()
	badPort.Server.Port = 0
	require.Error(t, badPort.Validate())

	relayNoServer := base()
	relayNoServer.Relay = RelayConfig{Enabled: true, Concurrency: 2}
	require.Error(t, relayNoServer.Validate())

	relayBadConcurrency := base()
	relayBadConcurrency.Relay = RelayConfig{Enabled: true, Server: "http://h", Concurrency: 0}
	require.Error(t, relayBadConcurrency.Validate())

	authNoKey := base()
	authNoKey.Auth = AuthConfig{Enabled: true}
	require.Error(t, authNoKey.Validate())

	badRetries := base()
	badRetries.Vault.MaxRetries = 0
	require.Error(t, badRetries.Validate())
}
