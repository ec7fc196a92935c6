package crypto

import (
	stded25519 "crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidPhrase    = errors.New("invalid seed phrase")
)

// Signer signs prepared data as is.
type Signer interface {
	PublicKey() stded25519.PublicKey
	SignRaw(preimage []byte) ([]byte, error)
}

// ExtendSignatureWithID appends big endian signature id to data, data is
// returned as is when id is nil.
func ExtendSignatureWithID(data []byte, id *int32) []byte {
	if id == nil {
		return data
	}

	res := make([]byte, len(data)+4)
	copy(res, data)
	binary.BigEndian.PutUint32(res[len(data):], uint32(*id))
	return res
}

type PublicKey []byte

func PublicKeyFromBytes(data []byte) (PublicKey, error) {
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(data))
	}
	return append(PublicKey{}, data...), nil
}

func PublicKeyFromHex(s string) (PublicKey, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return PublicKeyFromBytes(data)
}

func (p PublicKey) String() string {
	return hex.EncodeToString(p)
}

// CheckSignature verifies a signature of data extended with the signature id.
func (p PublicKey) CheckSignature(data, sig []byte, sigID *int32) bool {
	if len(p) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(p), ExtendSignatureWithID(data, sigID), sig)
}

type KeyPair struct {
	Secret []byte
	Public PublicKey

	private ed25519.PrivateKey
}

// GenerateKeyPair creates a key pair with a secret read from rand.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	secret := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand, secret); err != nil {
		return nil, fmt.Errorf("failed to read random: %w", err)
	}
	return KeyPairFromSecret(secret)
}

func KeyPairFromSecret(secret []byte) (*KeyPair, error) {
	if len(secret) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: secret must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(secret))
	}

	priv := ed25519.NewKeyFromSeed(secret)
	return &KeyPair{
		Secret:  append([]byte{}, secret...),
		Public:  PublicKey(priv[ed25519.SeedSize:]),
		private: priv,
	}, nil
}

func (k *KeyPair) PublicKey() stded25519.PublicKey {
	return stded25519.PublicKey(k.Public)
}

func (k *KeyPair) SignRaw(preimage []byte) ([]byte, error) {
	return ed25519.Sign(k.private, preimage), nil
}

// Sign signs sha256 of data, extended with the signature id.
func (k *KeyPair) Sign(data []byte, sigID *int32) []byte {
	h := sha256.Sum256(data)
	return ed25519.Sign(k.private, ExtendSignatureWithID(h[:], sigID))
}

// SignData signs data as is, extended with the signature id.
func (k *KeyPair) SignData(data []byte, sigID *int32) []byte {
	return ed25519.Sign(k.private, ExtendSignatureWithID(data, sigID))
}
