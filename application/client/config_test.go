package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coniks-sys/treesync/application/testutil"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/protocol"
	pclient "github.com/coniks-sys/treesync/protocol/client"
)

func TestConfigSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	key, err := sign.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.priv"), key, 0600))

	conf := NewConfig(filepath.Join(dir, "config.toml"), "toml",
		"client.priv", "unix:///tmp/treesync.sock")
	require.NoError(t, conf.Save())
	// Save refuses to overwrite
	require.Error(t, conf.Save())

	var loaded Config
	require.NoError(t, loaded.Load(conf.Path, "toml"))
	assert.Equal(t, "unix:///tmp/treesync.sock", loaded.Address)
	assert.Equal(t, key, loaded.SigningKey)
	assert.Equal(t, protocol.DefaultPolicies(), loaded.Policies)
	assert.Equal(t, pclient.DefaultConfig(), loaded.Orchestrator)
	assert.Nil(t, loaded.Prover())
}

func TestConfigMissingKey(t *testing.T) {
	dir := t.TempDir()
	conf := NewConfig(filepath.Join(dir, "config.toml"), "toml",
		"missing.priv", "unix:///tmp/treesync.sock")
	require.NoError(t, conf.Save())
	var loaded Config
	assert.Error(t, loaded.Load(conf.Path, "toml"))
}

func TestConfigPartialOrchestrator(t *testing.T) {
	dir := t.TempDir()
	key, err := sign.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client.priv"), key, 0600))

	conf := NewConfig(filepath.Join(dir, "config.toml"), "toml",
		"client.priv", "unix:///tmp/treesync.sock")
	// no finality timeout
	conf.Orchestrator = &pclient.Config{PollInterval: time.Millisecond}
	require.NoError(t, conf.Save())

	var loaded Config
	err = loaded.Load(conf.Path, "toml")
	assert.ErrorIs(t, err, protocol.ErrConfig)
}

func TestTLSConfig(t *testing.T) {
	dir, teardown := testutil.CreateTLSCertForTest(t)
	defer teardown()

	conf := &Config{}
	tlsConf, err := conf.TLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsConf.RootCAs)

	conf.ServerCertPath = filepath.Join(dir, "server.pem")
	tlsConf, err = conf.TLSConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsConf.RootCAs)

	conf.ServerCertPath = filepath.Join(dir, "server.key")
	_, err = conf.TLSConfig()
	assert.Error(t, err)
}
