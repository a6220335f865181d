package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/protocol"
	"github.com/coniks-sys/treesync/protocol/commitment"
	"github.com/coniks-sys/treesync/protocol/ledger"
	"github.com/coniks-sys/treesync/protocol/syncstore"
	"github.com/coniks-sys/treesync/storage/kv"
)

// A TreeSyncServer represents a treesync server.
// It wraps the sync store and a local ledger holding the commitment
// contract with a network layer which handles requests/responses and
// their encoding/decoding.
// A TreeSyncServer also supports concurrent handling of requests and
// seals the pending transactions of the ledger at regular time
// intervals.
type TreeSyncServer struct {
	*application.ServerBase
	policies   *Policies
	store      *syncstore.Store
	ledger     *ledger.Ledger
	db         kv.DB
	cache      *lru.Cache[string, *protocol.Response]
	blockTimer *application.BlockTimer
	metricsSrv *http.Server
	addrs      []*Address
}

// NewTreeSyncServer creates a new reference implementation of
// a treesync server. It restores the sync store and the commitment
// from the configured storage, and rebuilds the store from the
// commitment's transition log if the store fell behind.
func NewTreeSyncServer(conf *Config) (*TreeSyncServer, error) {
	// determine this server's request permissions
	perms := make(map[*application.ServerAddress]map[int]bool)
	for i := 0; i < len(conf.Addresses); i++ {
		addr := conf.Addresses[i]
		perms[addr.ServerAddress] = make(map[int]bool)
		perms[addr.ServerAddress][protocol.ReadSnapshotType] = true
		perms[addr.ServerAddress][protocol.GetRootType] = true
		perms[addr.ServerAddress][protocol.TxStatusType] = true
		perms[addr.ServerAddress][protocol.TransitionsType] = true
		perms[addr.ServerAddress][protocol.WriteSnapshotType] = addr.AllowWrite
		perms[addr.ServerAddress][protocol.InitTreeType] = addr.AllowWrite
		perms[addr.ServerAddress][protocol.SubmitTxType] = addr.AllowWrite
	}

	var metrics application.Metrics = application.NopMetrics{}
	if conf.MetricsAddress != "" {
		metrics = application.NewPrometheusMetrics("treesync")
	}

	db, err := conf.Storage.Open()
	if err != nil {
		return nil, err
	}
	p := conf.Policies.Policies
	store, err := syncstore.New(p, db)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	var contract *commitment.Contract
	if db != nil {
		contract, err = commitment.Load(p, db)
	} else {
		contract, err = commitment.New(p)
	}
	if err != nil {
		closeDB(db)
		return nil, err
	}
	if conf.Policies.verifier != nil {
		contract.SetVerifier(conf.Policies.verifier)
	}
	cache, err := lru.New[string, *protocol.Response](conf.CacheSize)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	// create server instance
	sb := application.NewServerBase(conf.CommonConfig, "Listen", perms, metrics)

	server := &TreeSyncServer{
		ServerBase: sb,
		policies:   conf.Policies,
		store:      store,
		ledger:     ledger.New(contract),
		db:         db,
		cache:      cache,
		blockTimer: application.NewBlockTimer(conf.Policies.BlockInterval),
		addrs:      conf.Addresses,
	}
	for _, pk := range conf.Policies.accounts {
		server.ledger.Register(pk)
	}
	server.ledger.Subscribe(server.confirm)
	if conf.MetricsAddress != "" {
		server.metricsSrv = &http.Server{
			Addr:              conf.MetricsAddress,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	if err := server.catchUp(); err != nil {
		closeDB(db)
		return nil, err
	}
	return server, nil
}

// Run implements the main functionality of the treesync server.
// It listens for all declared connections with corresponding
// permissions, seals blocks and serves the metrics.
func (server *TreeSyncServer) Run() {
	server.RunInBackground(func() {
		server.BlockUpdate(server.blockTimer, server.seal)
	})

	hasWritePerm := false
	for i := 0; i < len(server.addrs); i++ {
		addr := server.addrs[i]
		hasWritePerm = hasWritePerm || addr.AllowWrite
		if addr.AllowWrite {
			server.Verb = "Accepting writes"
		} else {
			server.Verb = "Listening"
		}
		server.ListenAndHandle(addr.ServerAddress, server.HandleRequests)
	}
	if !hasWritePerm {
		server.Logger().Warn("None of the addresses permit writes")
	}

	if server.metricsSrv != nil {
		server.RunInBackground(func() {
			server.Logger().Info("Serving metrics", "address", server.metricsSrv.Addr)
			err := server.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				server.Logger().Error(err.Error())
			}
		})
	}

	server.RunInBackground(func() {
		server.HotReload(server.updatePolicies)
	})
}

// Shutdown stops the server and closes its database.
func (server *TreeSyncServer) Shutdown() error {
	if server.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		server.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if err := server.ServerBase.Shutdown(); err != nil {
		return err
	}
	return closeDB(server.db)
}

// Store returns the server's sync store.
func (server *TreeSyncServer) Store() *syncstore.Store {
	return server.store
}

// Ledger returns the server's ledger.
func (server *TreeSyncServer) Ledger() *ledger.Ledger {
	return server.ledger
}

// seal runs with the server base locked. A writer whose update was
// confirmed in an earlier block had a block interval to write its tree
// back; if the store still lags the commitment, it is repaired first.
func (server *TreeSyncServer) seal() {
	server.repair()
	block, statuses := server.ledger.SealBlock()
	if statuses == nil {
		return
	}
	server.Metrics().SetBlock(block)
	for _, st := range statuses {
		server.Metrics().ObserveTx(st.State, st.Reason)
		if st.State == protocol.TxRejected {
			server.Logger().Info("Transaction rejected",
				"handle", st.Handle, "reason", st.Reason.Error(), "block", block)
		}
	}
	server.Logger().Debug("Sealed block", "block", block, "transactions", len(statuses))
}

func (server *TreeSyncServer) confirm(root fr.Element) {
	if err := server.store.Confirm(root); err != nil {
		server.Logger().Error("Cannot record the confirmed root",
			"root", crypto.ElementString(root), "error", err.Error())
	}
}

// repair rebuilds the sync store from the transition log if it holds
// a tree other than the confirmed commitment.
func (server *TreeSyncServer) repair() {
	confirmed, ok := server.store.ConfirmedRoot()
	if !ok {
		return
	}
	current, err := server.store.Root()
	if err != nil || current.Equal(&confirmed) {
		return
	}
	rebuilt, err := server.store.Rebuild(server.ledger.Transitions(0))
	if err != nil {
		server.Logger().Error("Cannot rebuild the sync store",
			"confirmed", crypto.ElementString(confirmed), "error", err.Error())
		return
	}
	server.Logger().Info("Rebuilt a lagging sync store from the transition log",
		"root", crypto.ElementString(rebuilt))
}

// catchUp rebuilds the sync store from the transition log if the
// commitment moved past the tree the store holds.
func (server *TreeSyncServer) catchUp() error {
	root, initialized, _ := server.ledger.Head()
	if !initialized {
		return nil
	}
	current, err := server.store.Root()
	if errors.Is(err, protocol.ErrUninitialized) {
		server.Logger().Warn("Commitment is initialized but the sync store is empty")
		return nil
	}
	if err != nil {
		return err
	}
	if current.Equal(&root) {
		return server.store.Confirm(root)
	}
	rebuilt, err := server.store.Rebuild(server.ledger.Transitions(0))
	if err != nil {
		return err
	}
	server.Logger().Info("Rebuilt the sync store from the transition log",
		"root", crypto.ElementString(rebuilt))
	return nil
}

func (server *TreeSyncServer) updatePolicies() {
	// read server policies from config file
	var conf Config
	path, encoding := server.ConfigInfo()
	if err := conf.Load(path, encoding); err != nil {
		// error occurred while reading server config
		// simply abort the reloading policies process
		server.Logger().Error(err.Error())
		return
	}
	p := conf.Policies
	if p.TreeHeight != server.policies.TreeHeight ||
		p.MaxIncrement != server.policies.MaxIncrement ||
		p.HashID != server.policies.HashID {
		server.Logger().Error("Tree policies cannot change while running")
		return
	}
	for _, pk := range p.accounts {
		server.ledger.Register(pk)
	}
	if p.verifier != nil {
		server.ledger.Contract().SetVerifier(p.verifier)
	}
	server.blockTimer.SetInterval(p.BlockInterval)
	server.policies = p
	server.Logger().Info("Policies reloaded!")
}

func closeDB(db kv.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
