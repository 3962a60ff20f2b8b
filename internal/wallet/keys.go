package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoKeySource is returned by KeySource.Load when nothing is configured.
// Callers treat it as "no wallet available" rather than a hard failure.
var ErrNoKeySource = errors.New("no signing key configured")

// KeySource describes where the signing key comes from. Exactly one of the
// fields (besides PassphraseEnv) should be set; the first non-empty one wins
// in the order HexEnv, HexFile, Keystore, SecretVersion.
type KeySource struct {
	// HexEnv names an environment variable holding a hex private key.
	HexEnv string `yaml:"hex_env"`

	// HexFile is a file containing a hex private key.
	HexFile string `yaml:"hex_file"`

	// Keystore is a go-ethereum keystore (V3 JSON) file.
	Keystore string `yaml:"keystore"`

	// PassphraseEnv names the environment variable holding the keystore passphrase.
	PassphraseEnv string `yaml:"passphrase_env"`

	// SecretVersion is a GCP Secret Manager version holding a hex key, e.g.
	// "projects/p/secrets/geomint-signer/versions/latest".
	SecretVersion string `yaml:"secret_version"`
}

// Configured reports whether any key location is set.
func (s KeySource) Configured() bool {
	return s.HexEnv != "" || s.HexFile != "" || s.Keystore != "" || s.SecretVersion != ""
}

// Load resolves the key. Returns ErrNoKeySource when nothing is configured.
func (s KeySource) Load(ctx context.Context) (*ecdsa.PrivateKey, error) {
	switch {
	case s.HexEnv != "":
		v := os.Getenv(s.HexEnv)
		if v == "" {
			return nil, fmt.Errorf("environment variable %s is empty", s.HexEnv)
		}
		return KeyFromHex(v)
	case s.HexFile != "":
		return KeyFromHexFile(s.HexFile)
	case s.Keystore != "":
		pass := ""
		if s.PassphraseEnv != "" {
			pass = os.Getenv(s.PassphraseEnv)
		}
		return KeyFromKeystore(s.Keystore, pass)
	case s.SecretVersion != "":
		return KeyFromSecretVersion(ctx, s.SecretVersion)
	default:
		return nil, ErrNoKeySource
	}
}

// KeyFromHex parses a hex-encoded secp256k1 private key, with or without 0x.
func KeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("parse hex key: %w", err)
	}
	return key, nil
}

// KeyFromHexFile reads a hex private key from path.
func KeyFromHexFile(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return KeyFromHex(string(data))
}

// KeyFromKeystore decrypts a V3 keystore file.
func KeyFromKeystore(path, passphrase string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	k, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return k.PrivateKey, nil
}
