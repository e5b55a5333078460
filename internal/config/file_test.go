package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	assert.Equal(t, err, nil)
	assert.Equal(t, config.Server.Port, 3000)
	assert.Equal(t, config.Morph.PermanentAttribute, "data-reflex-permanent")
	assert.Equal(t, config.Morph.RootAttribute, "data-reflex-root")
	assert.Equal(t, config.WebSocket.WriteTimeout, 10*time.Second)
	assert.Equal(t, config.ProxyURL == nil, true)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(`
server:
  port: 8080
  batch_dir: in
morph:
  permanent_attribute: data-keep
  queue_size: 8
proxy:
  url: http://127.0.0.1:9000/app?x=1
  insecure_verify: true
cors:
  enabled: true
websocket:
  write_timeout: 2s
`), 0644)
	assert.Equal(t, err, nil)

	config, err := LoadConfig(path)
	assert.Equal(t, err, nil)
	assert.Equal(t, config.Server.Port, 8080)
	assert.Equal(t, config.Server.BatchDir, "in")
	assert.Equal(t, config.Morph.PermanentAttribute, "data-keep")
	assert.Equal(t, config.Morph.RootAttribute, "data-reflex-root")
	assert.Equal(t, config.Morph.QueueSize, 8)
	assert.Equal(t, config.ProxyURL.Host, "127.0.0.1:9000")
	assert.Equal(t, config.InsecureProxy, true)
	assert.Equal(t, config.CORS.Enabled, true)
	assert.Equal(t, config.CORS.AllowOrigins, "*")
	assert.Equal(t, config.WebSocket.WriteTimeout, 2*time.Second)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.yml"))
	assert.NotEqual(t, err, nil)

	bad := filepath.Join(dir, "bad.yml")
	assert.Equal(t, os.WriteFile(bad, []byte("websocket:\n  write_timeout: soon\n"), 0644), nil)
	_, err = LoadConfig(bad)
	assert.NotEqual(t, err, nil)
}

func TestSaveDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	assert.Equal(t, SaveDefaultConfig(path), nil)

	config, err := LoadConfig(path)
	assert.Equal(t, err, nil)
	assert.Equal(t, config.Server.Document, "index.html")
	assert.Equal(t, config.Server.BatchDir, "batches")
	assert.Equal(t, config.Morph.MaxOpenTransactions, 1024)
	assert.Equal(t, config.WebSocket.SendBuffer, 256)
}
