package signing

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/minio/sha256-simd"
)

// Verify reports whether signature is a valid signature of payload under the
// PEM encoded public key. A malformed signature is a failed verification, a
// malformed public key is an error.
func Verify(payload []byte, publicKeyText, signature string) (bool, error) {
	key, err := ParsePublicKey(publicKeyText)
	if err != nil {
		return false, err
	}
	return VerifyWithKey(payload, key, signature), nil
}

// VerifyWithKey accepts a full domain hash signature made with any IV.
func VerifyWithKey(payload []byte, key *rsa.PublicKey, signature string) bool {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(raw) == 0 {
		return false
	}
	digest := sha256.Sum256(payload)
	return verifyFDH(key, digest[:], raw)
}

// Verifier verifies signatures and keeps recently parsed public keys around.
// It is safe for concurrent use.
type Verifier struct {
	keys *lru.Cache
}

func NewVerifier(size int) (*Verifier, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating public key cache: %w", err)
	}
	return &Verifier{keys: cache}, nil
}

func (v *Verifier) Verify(payload []byte, publicKeyText, signature string) (bool, error) {
	key, err := v.publicKey(publicKeyText)
	if err != nil {
		return false, err
	}
	return VerifyWithKey(payload, key, signature), nil
}

func (v *Verifier) publicKey(text string) (*rsa.PublicKey, error) {
	if cached, ok := v.keys.Get(text); ok {
		return cached.(*rsa.PublicKey), nil
	}
	key, err := ParsePublicKey(text)
	if err != nil {
		return nil, err
	}
	v.keys.Add(text, key)
	return key, nil
}
