package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/coniks-sys/treesync/application"
	"github.com/coniks-sys/treesync/crypto"
	"github.com/coniks-sys/treesync/crypto/hasher"
	"github.com/coniks-sys/treesync/merkletree"
	"github.com/coniks-sys/treesync/protocol"
	pclient "github.com/coniks-sys/treesync/protocol/client"
)

// defaultTimeout bounds a request whose context has no deadline.
const defaultTimeout = 10 * time.Second

// Remote talks to a treesync server. It gives access to the server's
// sync store and to the ledger holding the commitment contract.
type Remote struct {
	scheme    string
	address   string
	tlsConfig *tls.Config
	policies  *protocol.Policies
	hasher    hasher.TreeHasher
}

var _ pclient.SnapshotStore = (*Remote)(nil)
var _ pclient.Chain = (*Remote)(nil)

// NewRemote returns a Remote for the server at addr, formatted as
// scheme://address with scheme "tcp" or "unix". TCP connections use
// TLS with tlsConfig.
func NewRemote(addr string, p *protocol.Policies, tlsConfig *tls.Config) (*Remote, error) {
	h, err := p.Hasher()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrConfig, err)
	}
	r := &Remote{
		scheme:    u.Scheme,
		tlsConfig: tlsConfig,
		policies:  p,
		hasher:    h,
	}
	switch u.Scheme {
	case "tcp":
		r.address = u.Host
	case "unix":
		r.address = u.Path
	default:
		return nil, fmt.Errorf("%w: unknown network type %q", protocol.ErrConfig, u.Scheme)
	}
	return r, nil
}

// ReadSnapshot implements pclient.SnapshotStore. The snapshot is
// rebuilt and checked against the root the server states.
func (r *Remote) ReadSnapshot(ctx context.Context) (*merkletree.MerkleTree, error) {
	msg, err := CreateReadSnapshotMsg()
	if err != nil {
		return nil, err
	}
	res, err := r.exchange(ctx, protocol.ReadSnapshotType, msg)
	if err != nil {
		return nil, err
	}
	return r.treeOf(res)
}

// WriteSnapshot implements pclient.SnapshotStore.
func (r *Remote) WriteSnapshot(ctx context.Context, m *merkletree.MerkleTree, root fr.Element) error {
	msg, err := CreateWriteSnapshotMsg(m, root)
	if err != nil {
		return err
	}
	_, err = r.exchange(ctx, protocol.WriteSnapshotType, msg)
	return err
}

// InitTree creates the genesis tree of the server's sync store with
// the given leaves set. Without leaves, the server seeds its default.
func (r *Remote) InitTree(ctx context.Context, leaves map[uint64]fr.Element) (*merkletree.MerkleTree, error) {
	msg, err := CreateInitTreeMsg(leaves)
	if err != nil {
		return nil, err
	}
	res, err := r.exchange(ctx, protocol.InitTreeType, msg)
	if err != nil {
		return nil, err
	}
	return r.treeOf(res)
}

// Root implements pclient.RootReader. It returns ErrUninitialized if
// the contract holds no commitment yet.
func (r *Remote) Root(ctx context.Context) (fr.Element, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return fr.Element{}, err
	}
	if !head.Initialized {
		return fr.Element{}, protocol.ErrUninitialized
	}
	root, err := crypto.ParseElement(head.Root)
	if err != nil {
		return fr.Element{}, protocol.ErrSerialization
	}
	return root, nil
}

// Head returns the commitment held by the contract and the number of
// the latest sealed block.
func (r *Remote) Head(ctx context.Context) (*protocol.RootResponse, error) {
	msg, err := CreateGetRootMsg()
	if err != nil {
		return nil, err
	}
	res, err := r.exchange(ctx, protocol.GetRootType, msg)
	if err != nil {
		return nil, err
	}
	head, ok := res.Payload.(*protocol.RootResponse)
	if !ok {
		return nil, protocol.ErrMalformedMessage
	}
	return head, nil
}

// Broadcast implements pclient.Broadcaster.
func (r *Remote) Broadcast(ctx context.Context, tx *protocol.Transaction) (string, error) {
	msg, err := CreateSubmitTxMsg(tx)
	if err != nil {
		return "", err
	}
	res, err := r.exchange(ctx, protocol.SubmitTxType, msg)
	if err != nil {
		return "", err
	}
	receipt, ok := res.Payload.(*protocol.TxReceipt)
	if !ok {
		return "", protocol.ErrMalformedMessage
	}
	return receipt.Handle, nil
}

// AwaitFinality implements pclient.FinalityWaiter.
func (r *Remote) AwaitFinality(ctx context.Context, handle string) (*protocol.TxStatus, error) {
	msg, err := CreateTxStatusMsg(handle)
	if err != nil {
		return nil, err
	}
	res, err := r.exchange(ctx, protocol.TxStatusType, msg)
	if err != nil {
		return nil, err
	}
	st, ok := res.Payload.(*protocol.TxStatus)
	if !ok {
		return nil, protocol.ErrMalformedMessage
	}
	return st, nil
}

// Transitions returns the transitions the contract accepted, numbered
// from and later.
func (r *Remote) Transitions(ctx context.Context, from uint64) ([]*protocol.Transition, error) {
	msg, err := CreateTransitionsMsg(from)
	if err != nil {
		return nil, err
	}
	res, err := r.exchange(ctx, protocol.TransitionsType, msg)
	if err != nil {
		return nil, err
	}
	ts, ok := res.Payload.(*protocol.TransitionsResponse)
	if !ok {
		return nil, protocol.ErrMalformedMessage
	}
	return ts.Transitions, nil
}

func (r *Remote) treeOf(res *protocol.Response) (*merkletree.MerkleTree, error) {
	payload, ok := res.Payload.(*protocol.SnapshotResponse)
	if !ok {
		return nil, protocol.ErrMalformedMessage
	}
	m, err := merkletree.FromSnapshot(payload.Tree, r.hasher)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrSerialization, err)
	}
	if m.Height() != r.policies.TreeHeight {
		return nil, fmt.Errorf("%w: tree of height %d", protocol.ErrSerialization, m.Height())
	}
	if crypto.ElementString(m.Root()) != payload.Root {
		return nil, fmt.Errorf("%w: snapshot doesn't hash to its stated root", protocol.ErrSerialization)
	}
	return m, nil
}

// exchange sends msg and decodes the response. Connection failures
// are ErrTransport; a response carrying an error code yields that code.
func (r *Remote) exchange(ctx context.Context, reqType int, msg []byte) (*protocol.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	rev, err := r.roundTrip(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", protocol.ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", protocol.ErrTransport, err)
	}
	res := application.UnmarshalResponse(reqType, rev)
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Remote) roundTrip(ctx context.Context, msg []byte) ([]byte, error) {
	var conn net.Conn
	var err error
	switch r.scheme {
	case "tcp":
		d := &tls.Dialer{Config: r.tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", r.address)
	default:
		var d net.Dialer
		conn, err = d.DialContext(ctx, r.scheme, r.address)
	}
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	if c, ok := conn.(interface {
		CloseWrite() error
	}); ok {
		if err := c.CloseWrite(); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, application.MaxMessageSize+1); err != nil && err != io.EOF {
		return nil, err
	}
	if buf.Len() > application.MaxMessageSize {
		return nil, protocol.ErrMalformedMessage
	}
	return buf.Bytes(), nil
}
