package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

const (
	LegacyWordCount = 24
	Bip39WordCount  = 12

	DefaultBip39Path = "m/44'/396'/0'/0/0"

	legacySalt       = "TON default seed"
	legacyIterations = 100000

	hardenedOffset = hdkeychain.HardenedKeyStart
)

// Seed is a mnemonic phrase which derives a default key pair.
type Seed interface {
	Phrase() string
	KeyPair() (*KeyPair, error)
}

// ParsePhrase detects seed type by the number of words.
func ParsePhrase(phrase string) (Seed, error) {
	switch n := len(strings.Fields(phrase)); n {
	case LegacyWordCount:
		return NewLegacySeed(phrase)
	case Bip39WordCount:
		return NewBip39Seed(phrase)
	default:
		return nil, fmt.Errorf("%w: unexpected number of words %d", ErrInvalidPhrase, n)
	}
}

func splitWords(phrase string, count int) ([]string, error) {
	words := strings.Fields(phrase)
	if len(words) != count {
		return nil, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidPhrase, count, len(words))
	}

	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); !ok {
			return nil, fmt.Errorf("%w: unknown word %d", ErrInvalidPhrase, i+1)
		}
	}
	return words, nil
}

func generateWords(rand io.Reader, entropyBytes int) (string, error) {
	entropy := make([]byte, entropyBytes)
	if _, err := io.ReadFull(rand, entropy); err != nil {
		return "", fmt.Errorf("failed to read random: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// LegacySeed is a 24 words phrase of old wallets.
type LegacySeed struct {
	words []string
}

func NewLegacySeed(phrase string) (*LegacySeed, error) {
	words, err := splitWords(phrase, LegacyWordCount)
	if err != nil {
		return nil, err
	}
	return &LegacySeed{words: words}, nil
}

func GenerateLegacy(rand io.Reader) (*LegacySeed, error) {
	phrase, err := generateWords(rand, 32)
	if err != nil {
		return nil, err
	}
	return NewLegacySeed(phrase)
}

func (s *LegacySeed) Phrase() string {
	return strings.Join(s.words, " ")
}

func (s *LegacySeed) KeyPair() (*KeyPair, error) {
	mac := hmac.New(sha512.New, []byte(s.Phrase()))
	password := mac.Sum(nil)

	res := pbkdf2.Key(password, []byte(legacySalt), legacyIterations, 64, sha512.New)
	return KeyPairFromSecret(res[:32])
}

// Bip39Seed is a 12 words phrase, keys are derived by a path from it.
type Bip39Seed struct {
	words []string
}

func NewBip39Seed(phrase string) (*Bip39Seed, error) {
	words, err := splitWords(phrase, Bip39WordCount)
	if err != nil {
		return nil, err
	}
	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidPhrase)
	}
	return &Bip39Seed{words: words}, nil
}

func GenerateBip39(rand io.Reader) (*Bip39Seed, error) {
	phrase, err := generateWords(rand, 16)
	if err != nil {
		return nil, err
	}
	return NewBip39Seed(phrase)
}

// PathForAccount returns the derivation path of n-th account.
func PathForAccount(n uint16) string {
	return "m/44'/396'/0'/0/" + strconv.Itoa(int(n))
}

func (s *Bip39Seed) Phrase() string {
	return strings.Join(s.words, " ")
}

func (s *Bip39Seed) KeyPair() (*KeyPair, error) {
	return s.Derive(DefaultBip39Path)
}

func (s *Bip39Seed) seed() []byte {
	return bip39.NewSeed(s.Phrase(), "")
}

// Derive runs BIP-32 derivation and uses the derived private key as ed25519 secret.
func (s *Bip39Seed) Derive(path string) (*KeyPair, error) {
	indexes, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewMaster(s.seed(), &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	for _, i := range indexes {
		if key, err = key.Derive(i); err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", path, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return KeyPairFromSecret(priv.Serialize())
}

// DeriveEd25519 runs SLIP-10 derivation, all path components must be hardened.
func (s *Bip39Seed) DeriveEd25519(path string) (*KeyPair, error) {
	secret, err := deriveSLIP10(s.seed(), path)
	if err != nil {
		return nil, err
	}
	return KeyPairFromSecret(secret)
}

func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: path %q must start with m", ErrInvalidKey, path)
	}

	res := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'")
		v, err := strconv.ParseUint(strings.TrimSuffix(p, "'"), 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: bad path component %q", ErrInvalidKey, p)
		}

		idx := uint32(v)
		if hardened {
			idx += hardenedOffset
		}
		res = append(res, idx)
	}
	return res, nil
}
