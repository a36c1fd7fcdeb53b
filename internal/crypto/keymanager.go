package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations  = 480_000
	keyFileVersion = 1
)

var (
	ErrEmptyPassword = errors.New("crypto: password must not be empty")
	ErrNoKeySource   = errors.New("crypto: no private key source configured (set private_key or encrypted_key_path)")
)

// keyFile is the on-disk form of an encrypted wallet key. Byte fields are
// base64 in JSON.
type keyFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyConfig names where the wallet key comes from. A raw key wins over the
// encrypted file.
type KeyConfig struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// LoadKey returns the wallet key as hex without the 0x prefix.
func LoadKey(cfg KeyConfig) (string, error) {
	switch {
	case cfg.RawPrivateKey != "":
		key, err := parseKey(cfg.RawPrivateKey)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(key), nil
	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	default:
		return "", ErrNoKeySource
	}
}

// EncryptKey seals a hex private key with AES-256-GCM under a PBKDF2-SHA256
// key derived from password. The result is the JSON key file.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	key, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	f := keyFile{Version: keyFileVersion, Salt: make([]byte, 16)}
	if _, err := rand.Read(f.Salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	aead, err := keyAEAD(password, f.Salt)
	if err != nil {
		return nil, err
	}
	f.Nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(f.Nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	f.Ciphertext = aead.Seal(nil, f.Nonce, key, nil)
	return json.MarshalIndent(f, "", "  ")
}

// DecryptKey opens a key file written by EncryptKey and returns the key as
// hex without the 0x prefix.
func DecryptKey(data []byte, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	var f keyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("crypto: parse key file: %w", err)
	}
	if f.Version != keyFileVersion {
		return "", fmt.Errorf("crypto: unsupported key file version %d", f.Version)
	}
	aead, err := keyAEAD(password, f.Salt)
	if err != nil {
		return "", err
	}
	if len(f.Nonce) != aead.NonceSize() {
		return "", errors.New("crypto: malformed key file nonce")
	}
	key, err := aead.Open(nil, f.Nonce, f.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt key (wrong password?): %w", err)
	}
	return hex.EncodeToString(key), nil
}

// parseKey decodes a 32-byte hex key, with or without 0x.
func parseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: private key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(key))
	}
	return key, nil
}

func keyAEAD(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return aead, nil
}
