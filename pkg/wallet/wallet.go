// Package wallet loads the ed25519 keypair that signs and pays for every
// transaction of the unwind.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// SecretKeyName is the key of the inline keypair inside the secret store.
const SecretKeyName = "wallet/WALLET_KEY"

// Keypair is a Solana keypair (64-byte ed25519 private key).
type Keypair struct {
	key solana.PrivateKey
}

// NewKeypair wraps a 64-byte private key, checking the embedded public half.
func NewKeypair(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("keypair must be %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], secret[ed25519.SeedSize:]) {
		return nil, errors.New("keypair public key does not match secret")
	}
	return &Keypair{key: solana.PrivateKey(derived)}, nil
}

// FromSeed derives a keypair from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{key: solana.PrivateKey(ed25519.NewKeyFromSeed(seed))}, nil
}

func (k *Keypair) PrivateKey() solana.PrivateKey { return k.key }

func (k *Keypair) PublicKey() solana.PublicKey { return k.key.PublicKey() }

// Address returns the base58 public key.
func (k *Keypair) Address() string { return k.key.PublicKey().String() }

// ParseKeypairJSON parses the JSON byte-array format written by solana-keygen.
func ParseKeypairJSON(data []byte) (*Keypair, error) {
	var raw []int
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, errors.Wrap(err, "parse keypair json")
	}
	secret := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("keypair byte %d out of range: %d", i, v)
		}
		secret[i] = byte(v)
	}
	return NewKeypair(secret)
}

// ParseKeypair accepts either the JSON byte array or a base58 secret key as
// exported by wallets.
func ParseKeypair(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		return ParseKeypairJSON([]byte(s))
	}
	key, err := solana.PrivateKeyFromBase58(s)
	if err != nil {
		return nil, errors.Wrap(err, "parse base58 keypair")
	}
	return NewKeypair(key)
}

// LoadKeypairFile reads a keypair file; a leading ~ expands to the home dir.
func LoadKeypairFile(path string) (*Keypair, error) {
	path = expandHome(strings.TrimSpace(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read keypair file")
	}
	return ParseKeypairJSON(data)
}

// FromMnemonic derives the keypair the way `solana-keygen recover` does without
// a derivation path: the first 32 bytes of the BIP-39 seed.
func FromMnemonic(mnemonic, passphrase string) (*Keypair, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return FromSeed(seed[:ed25519.SeedSize])
}

// SecretGetter is the read side of the encrypted secret store.
type SecretGetter interface {
	GetString(key string) (string, bool, error)
}

// Source lists where a keypair may come from, in priority order.
type Source struct {
	Key        string // inline JSON byte array or base58
	Path       string // keypair file
	Mnemonic   string
	Passphrase string
	Secrets    SecretGetter // holds SecretKeyName
}

// Load resolves the first configured source.
func Load(src Source) (*Keypair, error) {
	switch {
	case strings.TrimSpace(src.Key) != "":
		return ParseKeypair(src.Key)
	case strings.TrimSpace(src.Path) != "":
		return LoadKeypairFile(src.Path)
	case strings.TrimSpace(src.Mnemonic) != "":
		return FromMnemonic(src.Mnemonic, src.Passphrase)
	case src.Secrets != nil:
		val, ok, err := src.Secrets.GetString(SecretKeyName)
		if err != nil {
			return nil, errors.Wrap(err, "read secret store")
		}
		if !ok {
			return nil, errors.Errorf("secret store has no %s", SecretKeyName)
		}
		return ParseKeypair(val)
	}
	return nil, errors.New("no wallet configured: set WALLET_KEY, WALLET, WALLET_MNEMONIC or a secret store")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
