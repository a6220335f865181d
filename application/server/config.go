package server

import (
	"fmt"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/storage/kv"
	"github.com/coniks-sys/treesync/storage/kv/badgerkv"
	"github.com/coniks-sys/treesync/storage/kv/leveldbkv"
	"github.com/coniks-sys/treesync/utils"
)

// An Address describes a server's connection.
// It makes the server connections configurable
// so that the sync store can be exposed to local clients
// on a Unix socket and to remote ones over TLS.
//
// Allowing writes has to be specified explicitly for each connection.
// Writes are the requests changing the sync store or the ledger:
// snapshot writes, tree initialization and transaction submissions.
// So, by default, addresses are "read-only".
type Address struct {
	*application.ServerAddress
	AllowWrite bool `toml:"allow_write,omitempty"`
}

// StorageConfig selects where the server persists the sync store and
// the commitment. Backend is "leveldb", "badger" or "memory".
type StorageConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path,omitempty"`
}

// Open opens the configured database. The memory backend yields a nil
// kv.DB; the server then keeps its state in memory only.
func (sc *StorageConfig) Open() (kv.DB, error) {
	switch sc.Backend {
	case "", "memory":
		return nil, nil
	case "leveldb":
		return leveldbkv.OpenDB(sc.Path)
	case "badger":
		return badgerkv.OpenDB(sc.Path)
	default:
		return nil, fmt.Errorf("Unknown storage backend %q", sc.Backend)
	}
}

// A Config contains configuration values
// which are read at initialization time from
// a TOML format configuration file.
type Config struct {
	*application.CommonConfig
	// CacheSize is the number of encoded snapshots kept in memory.
	CacheSize int `toml:"cache_size"`
	// MetricsAddress is the host:port Prometheus metrics are served
	// at. Metrics are disabled if it is empty.
	MetricsAddress string `toml:"metrics_address,omitempty"`
	// Storage contains the server's persistence configuration.
	Storage *StorageConfig `toml:"storage"`
	// Policies contains the server's treesync policies configuration.
	Policies *Policies `toml:"policies"`
	// Addresses contains the server's connections configuration.
	Addresses []*Address `toml:"addresses"`
}

var _ application.AppConfig = (*Config)(nil)

// NewConfig initializes a new server configuration at the given file
// path, with the given config encoding, server addresses, logger
// configuration, storage configuration and server application policies.
func NewConfig(file, encoding string, addrs []*Address,
	logConfig *application.LoggerConfig, storage *StorageConfig,
	policies *Policies) *Config {
	var conf = Config{
		CommonConfig: application.NewCommonConfig(file, encoding, logConfig),
		CacheSize:    16,
		Storage:      storage,
		Addresses:    addrs,
		Policies:     policies,
	}

	return &conf
}

// Load initializes a server's configuration from the given file
// using the given encoding. It validates the policies, reads the
// account keys and the proof keys, and makes the paths of the TLS
// certificate files, the database and the log file absolute.
func (conf *Config) Load(file, encoding string) error {
	conf.CommonConfig = application.NewCommonConfig(file, encoding, nil)
	if err := conf.GetLoader().Decode(conf); err != nil {
		return err
	}
	if conf.Logger == nil {
		conf.Logger = &application.LoggerConfig{Environment: "production"}
	}
	if conf.Policies == nil {
		conf.Policies = new(Policies)
	}
	if err := conf.Policies.load(file, application.LoadSigningPubKey); err != nil {
		return err
	}
	if conf.Storage == nil {
		conf.Storage = new(StorageConfig)
	}
	if conf.Storage.Path != "" {
		conf.Storage.Path = utils.ResolvePath(conf.Storage.Path, file)
	}
	if conf.CacheSize <= 0 {
		conf.CacheSize = 16
	}

	// also update path for TLS cert files
	for _, addr := range conf.Addresses {
		if addr.TLSCertPath != "" {
			addr.TLSCertPath = utils.ResolvePath(addr.TLSCertPath, file)
		}
		if addr.TLSKeyPath != "" {
			addr.TLSKeyPath = utils.ResolvePath(addr.TLSKeyPath, file)
		}
	}
	conf.ResolveLoggerPath()
	return nil
}

// Save writes a server's configuration.
func (conf *Config) Save() error {
	return conf.GetLoader().Encode(conf)
}

// GetPath returns the server's configuration file path.
func (conf *Config) GetPath() string {
	return conf.Path
}
