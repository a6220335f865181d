package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/application/client"
	"github.com/coniks-sys/treesync/application/server"
	"github.com/coniks-sys/treesync/application/testutil"
	"github.com/coniks-sys/treesync/crypto/sign"
	"github.com/coniks-sys/treesync/protocol"
	pclient "github.com/coniks-sys/treesync/protocol/client"
)

func startServer(t *testing.T) {
	addrs := []*server.Address{
		{
			ServerAddress: &application.ServerAddress{
				Address: testutil.LocalConnection,
			},
			AllowWrite: true,
		},
	}
	conf := server.NewConfig(filepath.Join(t.TempDir(), "config.toml"), "toml", addrs,
		&application.LoggerConfig{Environment: "development"},
		&server.StorageConfig{Backend: "memory"},
		server.NewPolicies(protocol.DefaultPolicies(), 10*time.Millisecond, nil, ""))
	serv, err := server.NewTreeSyncServer(conf)
	if err != nil {
		t.Fatal(err)
	}
	serv.Run()
	t.Cleanup(func() { serv.Shutdown() })
}

func newTestSession(t *testing.T) *session {
	key, err := sign.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	conf := &client.Config{
		Address:    testutil.LocalConnection,
		SigningKey: key,
		Policies:   protocol.DefaultPolicies(),
		Orchestrator: &pclient.Config{
			PollInterval:    5 * time.Millisecond,
			MaxPollInterval: 50 * time.Millisecond,
			FinalityTimeout: 5 * time.Second,
		},
	}
	return newSessionOrExit(conf)
}

func TestSessionCommands(t *testing.T) {
	startServer(t)
	s := newTestSession(t)
	ctx := context.Background()

	if _, err := s.deploy(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.deploy(ctx); err == nil {
		t.Fatal("Expect deploying twice to fail")
	}

	msg, err := s.increment(ctx, "10", "9")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg, "Leaf 10: 111 -> 120") {
		t.Fatal("Unexpected increment output:", msg)
	}

	if _, err := s.increment(ctx, "ten", "9"); err == nil {
		t.Fatal("Expect an error for a malformed index")
	}
	if _, err := s.increment(ctx, "10", "20"); err == nil {
		t.Fatal("Expect an error for an increment out of bound")
	}

	msg, err = s.status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "(in sync)") {
		t.Fatal("Unexpected status output:", msg)
	}
}

func TestFormatReport(t *testing.T) {
	r := &pclient.Report{}
	if !strings.HasPrefix(formatReport(r), "Commitment isn't initialized") {
		t.Fatal("Unexpected report for an uninitialized commitment")
	}
	r.Initialized = true
	r.ChainRoot.SetUint64(1)
	if !strings.Contains(formatReport(r), "OUT OF SYNC") {
		t.Fatal("Expect diverging roots to be reported")
	}
}
