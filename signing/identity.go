package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/minio/sha256-simd"
)

const (
	privateKeyBlockType = "RSA PRIVATE KEY"
	publicKeyBlockType  = "RSA PUBLIC KEY"

	// MinKeyBits is the weakest modulus accepted for a signing identity.
	MinKeyBits     = 1024
	DefaultKeyBits = 2048
)

var (
	ErrSigningFailed      = errors.New("couldn't sign")
	ErrMalformedKey       = errors.New("malformed key file")
	ErrMalformedPublicKey = errors.New("malformed public key")
	ErrKeyTooWeak         = errors.New("key size below minimum")
)

// Identity is the process-wide signing keypair.
// It is immutable once loaded.
type Identity struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	publicKeyText string
}

// LoadOrCreate reads the PEM encoded keypair from privPath and pubPath.
// A missing private key is generated with the given number of bits and written out.
// A missing public key is derived from the private key and written out.
func LoadOrCreate(privPath, pubPath string, bits int) (*Identity, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("%w: %d < %d", ErrKeyTooWeak, bits, MinKeyBits)
	}

	privateKey, err := loadOrCreatePrivateKey(privPath, bits)
	if err != nil {
		return nil, err
	}
	publicKey, err := loadOrCreatePublicKey(privateKey, pubPath)
	if err != nil {
		return nil, err
	}
	return newIdentity(privateKey, publicKey), nil
}

// Generate creates an identity that lives only in memory.
func Generate(bits int) (*Identity, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("%w: %d < %d", ErrKeyTooWeak, bits, MinKeyBits)
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return newIdentity(privateKey, &privateKey.PublicKey), nil
}

func newIdentity(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) *Identity {
	return &Identity{
		privateKey:    privateKey,
		publicKey:     publicKey,
		publicKeyText: EncodePublicKey(publicKey),
	}
}

// PublicKeyText returns the public key as a PKCS#1 PEM block.
func (i *Identity) PublicKeyText() string {
	return i.publicKeyText
}

func (i *Identity) PublicKey() *rsa.PublicKey {
	return i.publicKey
}

// Sign returns the base64 encoded RSA full domain hash signature of the
// SHA-256 digest of payload. The domain hash IV is picked at random, so two
// signatures of the same payload usually differ but both verify.
func (i *Identity) Sign(payload []byte) (string, error) {
	digest := sha256.Sum256(payload)
	signature, err := signFDH(rand.Reader, i.privateKey, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w (%v)", ErrSigningFailed, err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func EncodePublicKey(key *rsa.PublicKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  publicKeyBlockType,
		Bytes: x509.MarshalPKCS1PublicKey(key),
	}))
}

func ParsePublicKey(text string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil || block.Type != publicKeyBlockType {
		return nil, ErrMalformedPublicKey
	}
	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	return key, nil
}

func loadOrCreatePrivateKey(path string, bits int) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path) //#nosec G304
	switch {
	case errors.Is(err, fs.ErrNotExist):
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("generating key: %w", err)
		}
		encoded := pem.EncodeToMemory(&pem.Block{
			Type:  privateKeyBlockType,
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		if err := os.WriteFile(path, encoded, 0o600); err != nil {
			return nil, fmt.Errorf("writing private key to %s: %w", path, err)
		}
		return key, nil
	case err != nil:
		return nil, fmt.Errorf("reading private key from %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyBlockType {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedKey, path, err)
	}
	return key, nil
}

func loadOrCreatePublicKey(privateKey *rsa.PrivateKey, path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path) //#nosec G304
	switch {
	case errors.Is(err, fs.ErrNotExist):
		key := &privateKey.PublicKey
		if err := os.WriteFile(path, []byte(EncodePublicKey(key)), 0o644); err != nil {
			return nil, fmt.Errorf("writing public key to %s: %w", path, err)
		}
		return key, nil
	case err != nil:
		return nil, fmt.Errorf("reading public key from %s: %w", path, err)
	}

	key, err := ParsePublicKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedKey, path, err)
	}
	return key, nil
}
