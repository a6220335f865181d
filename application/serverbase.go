package application

import (
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coniks-sys/treesync/protocol"
)

// MaxMessageSize is the largest request or response, in bytes, a
// treesync server or client reads from a connection. It fits a dense
// snapshot of the highest tree the snapshot format allows.
const MaxMessageSize = 16 << 20

// connDeadline bounds the time a single request may hold a connection.
const connDeadline = 10 * time.Second

// BlockTimer consists of a `time.Timer` and the block interval.
type BlockTimer struct {
	*time.Timer
	duration time.Duration
}

// NewBlockTimer initializes a block timer for sealing the pending
// transactions of the ledger at a regular interval.
func NewBlockTimer(interval time.Duration) *BlockTimer {
	return &BlockTimer{
		Timer:    time.NewTimer(interval),
		duration: interval,
	}
}

// SetInterval changes the interval of t and restarts it.
// It must not run concurrently with BlockUpdate's use of t.
func (t *BlockTimer) SetInterval(d time.Duration) {
	t.duration = d
	t.Reset(d)
}

// A ServerAddress describes a server's connection.
// It supports two types of connections: a TCP connection ("tcp")
// and a Unix socket connection ("unix").
//
// Additionally, TCP connections must use TLS for added security,
// and each is required to specify a TLS certificate and corresponding
// private key.
type ServerAddress struct {
	// Address is formatted as a url: scheme://address.
	Address string `toml:"address"`
	// TLSCertPath is a path to the server's TLS Certificate,
	// which has to be set if the connection is TCP.
	TLSCertPath string `toml:"cert,omitempty"`
	// TLSKeyPath is a path to the server's TLS private key,
	// which has to be set if the connection is TCP.
	TLSKeyPath string `toml:"key,omitempty"`
}

// A Handler serves one decoded request.
type Handler func(req *protocol.Request) *protocol.Response

// A ServerBase represents the base features needed to implement
// a treesync server.
// It wraps the sync store and the ledger with a network layer which
// handles requests/responses and their encoding/decoding.
// A ServerBase also supports concurrent handling of read-only requests;
// requests that change state are serialized.
type ServerBase struct {
	Verb           string
	acceptableReqs map[*ServerAddress]map[int]bool

	logger  *Logger
	metrics Metrics
	sync.RWMutex

	stop          chan struct{}
	waitStop      sync.WaitGroup
	waitCloseConn sync.WaitGroup

	configFilePath string
	configEncoding string
	reloadChan     chan os.Signal
}

// NewServerBase creates a new generic treesync server base.
// If metrics is nil, nothing is recorded; without a logger
// configuration nothing is logged.
func NewServerBase(conf *CommonConfig, listenVerb string,
	perms map[*ServerAddress]map[int]bool, metrics Metrics) *ServerBase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	// create server instance
	sb := new(ServerBase)
	sb.Verb = listenVerb
	sb.acceptableReqs = perms
	if conf.Logger == nil {
		sb.logger = NewNopLogger()
	} else {
		sb.logger = NewLogger(conf.Logger).Named("treesync")
	}
	sb.metrics = metrics
	sb.stop = make(chan struct{})
	sb.configFilePath = conf.Path
	sb.configEncoding = conf.Encoding
	sb.reloadChan = make(chan os.Signal, 1)
	signal.Notify(sb.reloadChan, syscall.SIGUSR2)
	return sb
}

// ListenAndHandle implements the main functionality of a treesync
// server. It listens at the given server address with corresponding
// permissions, and passes every acceptable request to reqHandler.
func (sb *ServerBase) ListenAndHandle(addr *ServerAddress, reqHandler Handler) {
	ln, tlsConfig := addr.resolveAndListen()
	sb.waitStop.Add(1)
	go func() {
		sb.logger.Info(sb.Verb, "address", addr.Address)
		sb.acceptRequests(addr, ln, tlsConfig, reqHandler)
		sb.waitStop.Done()
	}()
}

func (addr *ServerAddress) resolveAndListen() (ln net.Listener,
	tlsConfig *tls.Config) {
	u, err := url.Parse(addr.Address)
	if err != nil {
		panic(err)
	}
	switch u.Scheme {
	case "tcp":
		// force to use TLS
		cer, err := tls.LoadX509KeyPair(addr.TLSCertPath, addr.TLSKeyPath)
		if err != nil {
			panic(err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cer}}
		tcpaddr, err := net.ResolveTCPAddr(u.Scheme, u.Host)
		if err != nil {
			panic(err)
		}
		ln, err = net.ListenTCP(u.Scheme, tcpaddr)
		if err != nil {
			panic(err)
		}
		return
	case "unix":
		unixaddr, err := net.ResolveUnixAddr(u.Scheme, u.Path)
		if err != nil {
			panic(err)
		}
		ln, err = net.ListenUnix(u.Scheme, unixaddr)
		if err != nil {
			panic(err)
		}
		return
	default:
		panic("Unknown network type")
	}
}

func (sb *ServerBase) acceptRequests(addr *ServerAddress, ln net.Listener,
	tlsConfig *tls.Config, handler Handler) {
	defer ln.Close()
	go func() {
		<-sb.stop
		if l, ok := ln.(interface {
			SetDeadline(time.Time) error
		}); ok {
			l.SetDeadline(time.Now())
		}
	}()

	for {
		select {
		case <-sb.stop:
			sb.waitCloseConn.Wait()
			return
		default:
		}
		conn, err := ln.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			sb.logger.Error(err.Error())
			continue
		}
		if _, ok := ln.(*net.TCPListener); ok {
			conn = tls.Server(conn, tlsConfig)
		}
		sb.waitCloseConn.Add(1)
		go func() {
			sb.acceptClient(addr, conn, handler)
			sb.waitCloseConn.Done()
		}()
	}
}

// checkRequestType verifies that the server is allowed to handle
// the given Request message type at the given address.
// If reqType is not acceptable, checkRequestType() returns a
// protocol.ErrMalformedMessage, otherwise it returns.
func (sb *ServerBase) checkRequestType(addr *ServerAddress,
	reqType int) error {
	if !sb.acceptableReqs[addr][reqType] {
		sb.logger.Error("Unacceptable message type",
			"request type", reqType)
		return protocol.ErrMalformedMessage
	}
	return nil
}

func (sb *ServerBase) acceptClient(addr *ServerAddress, conn net.Conn,
	handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	var buf bytes.Buffer
	var response *protocol.Response
	reqType := -1
	start := time.Now()
	if _, err := io.CopyN(&buf, conn, MaxMessageSize+1); err != nil && err != io.EOF {
		sb.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
		return
	}

	// unmarshalling
	if buf.Len() > MaxMessageSize {
		response = malformedClientMsg(nil)
	} else if req, err := UnmarshalRequest(buf.Bytes()); err != nil {
		response = malformedClientMsg(err)
	} else {
		reqType = req.Type
		if err := sb.checkRequestType(addr, req.Type); err != nil {
			response = malformedClientMsg(err)
		} else {
			response = sb.handle(req, handler)
			if response.Error != protocol.ReqSuccess {
				sb.logger.Warn(response.Error.Error(),
					"address", conn.RemoteAddr().String(),
					"request type", req.Type)
			}
		}
	}
	sb.metrics.ObserveRequest(reqType, response.Error, time.Since(start))

	// marshalling
	res, e := MarshalResponse(response)
	if e != nil {
		panic(e)
	}
	_, err := conn.Write(res)
	if err != nil {
		sb.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
		return
	}
}

func (sb *ServerBase) handle(req *protocol.Request, handler Handler) *protocol.Response {
	if protocol.IsReadOnly(req.Type) {
		sb.RLock()
		defer sb.RUnlock()
	} else {
		sb.Lock()
		defer sb.Unlock()
	}
	return handler(req)
}

// RunInBackground creates a new goroutine that calls function `f`.
// It automatically increments the counter `sync.WaitGroup` of the
// `ServerBase` and calls `Done` when the function execution is finished.
func (sb *ServerBase) RunInBackground(f func()) {
	sb.waitStop.Add(1)
	go func() {
		f()
		sb.waitStop.Done()
	}()
}

// BlockUpdate runs function `f`, which is supposed to seal a block of
// the ledger, every time the given timer fires.
func (sb *ServerBase) BlockUpdate(timer *BlockTimer, f func()) {
	for {
		select {
		case <-sb.stop:
			timer.Stop()
			return
		case <-timer.C:
			sb.Lock()
			f()
			timer.Reset(timer.duration)
			sb.Unlock()
		}
	}
}

// HotReload implements hot-reloading by listening for SIGUSR2 signal.
func (sb *ServerBase) HotReload(f func()) {
	for {
		select {
		case <-sb.stop:
			return
		case <-sb.reloadChan:
			sb.Lock()
			f()
			sb.Unlock()
		}
	}
}

// Logger returns the server base's logger instance.
func (sb *ServerBase) Logger() *Logger {
	return sb.logger
}

// Metrics returns the server base's metrics.
func (sb *ServerBase) Metrics() Metrics {
	return sb.metrics
}

// ConfigInfo returns the server base's config file path and encoding.
func (sb *ServerBase) ConfigInfo() (string, string) {
	return sb.configFilePath, sb.configEncoding
}

// Shutdown closes all of the server's connections and shuts down the server.
func (sb *ServerBase) Shutdown() error {
	close(sb.stop)
	sb.waitStop.Wait()
	signal.Stop(sb.reloadChan)
	sb.logger.Sync()
	return nil
}
