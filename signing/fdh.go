package signing

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/minio/sha256-simd"
)

var errNoDomainHash = errors.New("no full domain hash below the modulus")

// fullDomainHash stretches digest to size bytes as
// H(digest || iv) || H(digest || iv+1) || ..., truncated to size.
func fullDomainHash(digest []byte, iv uint8, size int) []byte {
	out := make([]byte, 0, size+sha256.Size)
	for i := 0; len(out) < size; i++ {
		out = append(out, fdhBlock(digest, iv+uint8(i))...)
	}
	return out[:size]
}

func fdhBlock(digest []byte, iv uint8) []byte {
	h := sha256.New()
	h.Write(digest)
	h.Write([]byte{iv})
	return h.Sum(nil)
}

func modulusSize(n *big.Int) int {
	return (n.BitLen() + 7) / 8
}

// hashIntoDomain walks the IVs from start until the full domain hash of
// digest is a non-zero value below n.
func hashIntoDomain(digest []byte, start uint8, n *big.Int) (*big.Int, error) {
	size := modulusSize(n)
	iv := start
	for i := 0; i < 256; i++ {
		m := new(big.Int).SetBytes(fullDomainHash(digest, iv, size))
		if m.Sign() > 0 && m.Cmp(n) < 0 {
			return m, nil
		}
		iv++
	}
	return nil, errNoDomainHash
}

// signFDH produces a randomized RSA full domain hash signature of digest.
// The starting IV is random and the private exponentiation is blinded.
func signFDH(random io.Reader, key *rsa.PrivateKey, digest []byte) ([]byte, error) {
	var start [1]byte
	if _, err := io.ReadFull(random, start[:]); err != nil {
		return nil, fmt.Errorf("reading iv: %w", err)
	}
	m, err := hashIntoDomain(digest, start[0], key.N)
	if err != nil {
		return nil, err
	}

	e := big.NewInt(int64(key.E))
	var r, rInv *big.Int
	for rInv == nil {
		r, err = rand.Int(random, key.N)
		if err != nil {
			return nil, fmt.Errorf("reading blinding factor: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}
		rInv = new(big.Int).ModInverse(r, key.N)
	}

	blinded := new(big.Int).Exp(r, e, key.N)
	blinded.Mul(blinded, m).Mod(blinded, key.N)
	s := new(big.Int).Exp(blinded, key.D, key.N)
	s.Mul(s, rInv).Mod(s, key.N)

	if new(big.Int).Exp(s, e, key.N).Cmp(m) != 0 {
		return nil, errors.New("signature does not verify")
	}
	return s.FillBytes(make([]byte, modulusSize(key.N))), nil
}

// verifyFDH reports whether sig is a full domain hash signature of digest
// for any IV.
func verifyFDH(key *rsa.PublicKey, digest, sig []byte) bool {
	size := modulusSize(key.N)
	if len(sig) == 0 || len(sig) > size {
		return false
	}
	s := new(big.Int).SetBytes(sig)
	if s.Sign() == 0 || s.Cmp(key.N) >= 0 {
		return false
	}
	m := new(big.Int).Exp(s, big.NewInt(int64(key.E)), key.N).FillBytes(make([]byte, size))

	// Only an IV whose first block matches needs the full hash.
	head := m
	if len(head) > sha256.Size {
		head = head[:sha256.Size]
	}
	for iv := 0; iv < 256; iv++ {
		if !bytes.Equal(fdhBlock(digest, uint8(iv))[:len(head)], head) {
			continue
		}
		if bytes.Equal(fullDomainHash(digest, uint8(iv), size), m) {
			return true
		}
	}
	return false
}
