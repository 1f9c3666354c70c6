package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/consentry/consentry/internal/registry"
)

// Approver decides whether a signing request for a message may proceed.
// It models the wallet's confirmation step; a nil approver approves
// everything.
type Approver func(message string) bool

// Keystore holds one ed25519 signing key and exposes it through the
// registry's Signer and IdentityProvider contracts. The wallet address
// is the hex-encoded public key with an 0x prefix.
type Keystore struct {
	mu       sync.RWMutex
	priv     ed25519.PrivateKey
	address  string
	approver Approver
}

// Generate creates a keystore with a fresh key pair.
func Generate() (*Keystore, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keystore{priv: priv, address: Address(pub)}, nil
}

// Load reads a keystore from a key file written by Save.
func Load(path string) (*Keystore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file: expected %d key bytes, got %d", ed25519.PrivateKeySize, len(decoded))
	}
	priv := ed25519.PrivateKey(decoded)
	return &Keystore{priv: priv, address: Address(priv.Public().(ed25519.PublicKey))}, nil
}

// Save writes the private key to path, readable only by the owner.
func (k *Keystore) Save(path string) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.priv == nil {
		return registry.ErrNoSigningIdentity
	}
	encoded := base64.StdEncoding.EncodeToString(k.priv)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// SetApprover installs a confirmation hook consulted before each
// signature.
func (k *Keystore) SetApprover(a Approver) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.approver = a
}

// ConnectedAddress returns the wallet address, or false when no key is
// loaded.
func (k *Keystore) ConnectedAddress() (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.priv == nil {
		return "", false
	}
	return k.address, true
}

// Sign produces a hex signature over message for the given identity.
// The identity must match the loaded key's address exactly.
func (k *Keystore) Sign(_ context.Context, message, identity string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.priv == nil {
		return "", registry.ErrNoSigningIdentity
	}
	if identity != k.address {
		return "", fmt.Errorf("%w: no key for %s", registry.ErrNoSigningIdentity, identity)
	}
	if k.approver != nil && !k.approver(message) {
		return "", registry.ErrSigningRejected
	}
	sig := ed25519.Sign(k.priv, []byte(message))
	return "0x" + hex.EncodeToString(sig), nil
}

// Address derives a wallet address from a public key.
func Address(pub ed25519.PublicKey) string {
	return "0x" + hex.EncodeToString(pub)
}

// Verify checks a hex signature against a message and wallet address.
func Verify(message, signature, address string) bool {
	pubHex := strings.TrimPrefix(address, "0x")
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sigHex := strings.TrimPrefix(signature, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}
