package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrKeyNotFound is returned for an unknown key id.
var ErrKeyNotFound = errors.New("key not found")

// KeyProvider supplies the RSA keys used to sign and verify locally issued tokens.
type KeyProvider interface {
	SigningKey() (kid string, key *rsa.PrivateKey, err error)
	VerificationKey(kid string) (*rsa.PublicKey, error)
	VerificationKeys() map[string]*rsa.PublicKey
}

// StaticKeyProvider holds a fixed set of keys. The signing key is the private key
// whose kid sorts first.
type StaticKeyProvider struct {
	signingKID string
	signingKey *rsa.PrivateKey
	keys       map[string]*rsa.PublicKey
}

// NewFileKeyProvider loads every PEM file in dir. Private keys (PKCS#1 or PKCS#8) can sign;
// public keys (PKCS#1 or PKIX) only verify. The file name without extension is the kid.
func NewFileKeyProvider(dir string) (*StaticKeyProvider, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &StaticKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	private := make(map[string]*rsa.PrivateKey)

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".pem") {
			continue
		}

		path := filepath.Join(dir, file.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}
		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		priv, pub, err := parsePEMKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", path, err)
		}
		if priv != nil {
			private[kid] = priv
			pub = &priv.PublicKey
		}
		provider.keys[kid] = pub
	}

	kids := make([]string, 0, len(private))
	for kid := range private {
		kids = append(kids, kid)
	}
	if len(kids) == 0 {
		return nil, errors.New("no private key found for signing")
	}
	sort.Strings(kids)
	provider.signingKID = kids[0]
	provider.signingKey = private[kids[0]]

	return provider, nil
}

// NewEphemeralKeyProvider generates a throwaway 2048-bit key. Tokens it signs do not
// survive a restart.
func NewEphemeralKeyProvider(kid string) (*StaticKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return NewStaticKeyProvider(kid, key), nil
}

// NewStaticKeyProvider wraps an existing key pair.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{
		signingKID: kid,
		signingKey: key,
		keys:       map[string]*rsa.PublicKey{kid: &key.PublicKey},
	}
}

func parsePEMKey(raw []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, nil, errors.New("no PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return nil, key, nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return nil, rsaKey, nil
		}
	}
	return nil, nil, errors.New("unsupported key type")
}

func (p *StaticKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return "", nil, errors.New("signing key not configured")
	}
	return p.signingKID, p.signingKey, nil
}

func (p *StaticKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

func (p *StaticKeyProvider) VerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// NewKeyProvider loads keys from dir. Outside production a missing directory falls
// back to an ephemeral key.
func NewKeyProvider(env, dir string) (KeyProvider, error) {
	provider, err := NewFileKeyProvider(dir)
	if err == nil {
		return provider, nil
	}
	if env == "production" {
		return nil, err
	}
	return NewEphemeralKeyProvider("dev")
}
