// Package wallet loads the account pool: ed25519 keys in the formats the
// IOTA tooling exports, per-account proxies, validators and user agents.
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

// PrivateKeyPrefix is the bech32 human readable part of exported IOTA keys.
const PrivateKeyPrefix = "iotaprivkey"

// Signature scheme flags.
const (
	FlagEd25519 byte = 0x00
)

var ErrUnknownKeyFormat = errors.New("unknown private key format")

// Keypair is an ed25519 signing identity.
type Keypair struct {
	private ed25519.PrivateKey
}

// NewKeypair builds a keypair from a 32 byte seed.
func NewKeypair(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParsePrivateKey accepts iotaprivkey1… bech32, 64 hex chars, or 0x + 64 hex chars.
func ParsePrivateKey(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, PrivateKeyPrefix+"1"):
		return parseBech32(s)
	case len(s) == 66 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")):
		return parseHex(s[2:])
	case len(s) == 64:
		return parseHex(s)
	default:
		return nil, ErrUnknownKeyFormat
	}
}

func parseHex(s string) (*Keypair, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex key: %w", err)
	}
	return NewKeypair(seed)
}

func parseBech32(s string) (*Keypair, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode bech32 key: %w", err)
	}
	if hrp != PrivateKeyPrefix {
		return nil, fmt.Errorf("unexpected key prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("convert bech32 key: %w", err)
	}
	if len(raw) != 1+ed25519.SeedSize {
		return nil, fmt.Errorf("bech32 key has %d bytes, want %d", len(raw), 1+ed25519.SeedSize)
	}
	if raw[0] != FlagEd25519 {
		return nil, fmt.Errorf("unsupported signature scheme flag 0x%02x", raw[0])
	}
	return NewKeypair(raw[1:])
}

// EncodePrivateKey renders the keypair as an iotaprivkey1… string.
func (k *Keypair) EncodePrivateKey() (string, error) {
	raw := append([]byte{FlagEd25519}, k.private.Seed()...)
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(PrivateKeyPrefix, data)
}

// PublicKey implements domain.Credential.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// Sign implements domain.Credential.
func (k *Keypair) Sign(digest []byte) []byte {
	return ed25519.Sign(k.private, digest)
}

// Address derives the account address: blake2b-256(flag || pubkey).
func (k *Keypair) Address() string {
	return AddressFromPublicKey(k.PublicKey())
}

// AddressFromPublicKey derives an ed25519 account address.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, FlagEd25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}
