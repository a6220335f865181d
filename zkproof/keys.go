package zkproof

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/coniks-sys/treesync/crypto/hasher/mimc"
	"github.com/coniks-sys/treesync/protocol"
)

// The files a key directory holds.
const (
	ProvingKeyFile   = "update.pk"
	VerifyingKeyFile = "update.vk"
)

// WriteKeys serializes the proving key to pk and the verifying key
// to vk.
func (s *System) WriteKeys(pk, vk io.Writer) error {
	if _, err := s.pk.WriteTo(pk); err != nil {
		return err
	}
	_, err := s.vk.WriteTo(vk)
	return err
}

// ReadKeys compiles the update circuit for trees shaped by p and reads
// the keys of an earlier Setup for the same shape from pk and vk.
func ReadKeys(p *protocol.Policies, pk, vk io.Reader) (*System, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.HashID != mimc.MiMC_BN254 {
		return nil, ErrUnsupportedHasher
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder,
		NewUpdateCircuit(p.TreeHeight, p.MaxIncrement))
	if err != nil {
		return nil, err
	}
	s := &System{
		height: p.TreeHeight,
		ccs:    ccs,
		pk:     groth16.NewProvingKey(ecc.BN254),
		vk:     groth16.NewVerifyingKey(ecc.BN254),
	}
	if _, err := s.pk.ReadFrom(pk); err != nil {
		return nil, err
	}
	if _, err := s.vk.ReadFrom(vk); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveKeys writes the keys of s to dir. It refuses to overwrite
// existing key files.
func (s *System) SaveKeys(dir string) error {
	pkFile, err := createFile(filepath.Join(dir, ProvingKeyFile))
	if err != nil {
		return err
	}
	defer pkFile.Close()
	vkFile, err := createFile(filepath.Join(dir, VerifyingKeyFile))
	if err != nil {
		return err
	}
	defer vkFile.Close()

	pkw, vkw := bufio.NewWriter(pkFile), bufio.NewWriter(vkFile)
	if err := s.WriteKeys(pkw, vkw); err != nil {
		return err
	}
	if err := pkw.Flush(); err != nil {
		return err
	}
	return vkw.Flush()
}

// LoadKeys reads the keys SaveKeys wrote to dir.
func LoadKeys(p *protocol.Policies, dir string) (*System, error) {
	pkFile, err := os.Open(filepath.Join(dir, ProvingKeyFile))
	if err != nil {
		return nil, err
	}
	defer pkFile.Close()
	vkFile, err := os.Open(filepath.Join(dir, VerifyingKeyFile))
	if err != nil {
		return nil, err
	}
	defer vkFile.Close()
	return ReadKeys(p, bufio.NewReader(pkFile), bufio.NewReader(vkFile))
}

func createFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}
