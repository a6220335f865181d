// Package testutil provides TLS certificates and raw socket clients for
// testing treesync servers.
package testutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"
)

const (
	TestDir = "treesyncServerTest"
	// PublicConnection is the TCP address test servers listen at.
	PublicConnection = "tcp://127.0.0.1:3000"

	publicHost = "127.0.0.1:3000"

	maxResponseSize = 16 << 20
)

// localPath is unique to the test binary, so that the tests of several
// packages can run at the same time.
var localPath = filepath.Join(os.TempDir(),
	fmt.Sprintf("treesynctest-%d.sock", os.Getpid()))

// LocalConnection is the Unix socket test servers listen at.
var LocalConnection = "unix://" + localPath

// CreateTLSCert writes a self-signed certificate for 127.0.0.1 and its
// key to dir, as server.pem and server.key.
func CreateTLSCert(dir string) error {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(1 * time.Hour)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"treesync"},
			CommonName:   "localhost",
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,

		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(path.Join(dir, "server.pem"))
	if err != nil {
		return err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return err
	}

	keyOut, err := os.OpenFile(path.Join(dir, "server.key"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer keyOut.Close()

	b, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	return pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: b})
}

// CreateTLSCertForTest creates a temporary directory holding a fresh
// certificate, and returns it with a function removing it.
func CreateTLSCertForTest(t *testing.T) (string, func()) {
	dir, err := os.MkdirTemp("", TestDir)
	if err != nil {
		t.Fatal(err)
	}
	err = CreateTLSCert(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, func() {
		os.RemoveAll(dir)
	}
}

// NewTCPClient sends msg to the server at PublicConnection and returns
// its response.
func NewTCPClient(msg []byte) ([]byte, error) {
	conf := &tls.Config{InsecureSkipVerify: true}

	conn, err := tls.Dial("tcp", publicHost, conf)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	if err := conn.CloseWrite(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, maxResponseSize); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewUnixClient sends msg to the server at LocalConnection and returns
// its response.
func NewUnixClient(msg []byte) ([]byte, error) {
	scheme := "unix"
	unixaddr := &net.UnixAddr{Name: localPath, Net: scheme}

	conn, err := net.DialUnix(scheme, nil, unixaddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if _, err := conn.Write(msg); err != nil {
		return nil, err
	}
	conn.CloseWrite()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, conn, maxResponseSize); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}
