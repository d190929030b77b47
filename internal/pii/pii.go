// Package pii encapsulates the encrypted-at-rest handling of guest and
// employee personal data (names, emails, phone numbers). Values are never
// decrypted implicitly during business logic — only at response assembly,
// by callers that explicitly ask for the plaintext.
package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/prontocore/kitchen/internal/config"
)

var (
	ErrEncryptionKeyMissing = errors.New("pii: encryption key not configured")
	ErrInvalidCiphertext    = errors.New("pii: invalid ciphertext")
)

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource derives the AES-256 key used for every Encrypt/Decrypt call in
// the process from the configured PIIEncryptionKey, exactly as
// paymentprovider derives its own config-secret key.
type KeySource struct {
	key []byte
}

func NewKeySource(cfg config.Config) *KeySource {
	secret := strings.TrimSpace(cfg.PIIEncryptionKey)
	if secret == "" {
		return &KeySource{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &KeySource{key: sum[:]}
}

func (k *KeySource) configured() bool { return len(k.key) == aes.BlockSize*2 }

// Hash computes the lookup hash for plaintext without requiring the
// encryption key - used to resolve a lookup-by-email before any value is
// decrypted.
func (k *KeySource) Hash(plaintext string) string {
	return normalizedHash(plaintext)
}

// Value is an encrypted PII field plus a normalized hash that allows
// equality lookups (e.g. "does a customer with this email already exist")
// without ever decrypting the stored value.
type Value struct {
	ciphertext string
	hash       string
}

// Encrypt seals plaintext with AES-GCM and computes NormalizedHash from a
// case-folded, whitespace-trimmed copy of the input so "a@b.com" and
// "A@B.com " resolve to the same lookup key.
func (k *KeySource) Encrypt(plaintext string) (Value, error) {
	if !k.configured() {
		return Value{}, ErrEncryptionKeyMissing
	}

	block, err := aes.NewCipher(k.key)
	if err != nil {
		return Value{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Value{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Value{}, err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	encoded := encryptedPayload{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	}
	out, err := json.Marshal(encoded)
	if err != nil {
		return Value{}, err
	}

	return Value{
		ciphertext: string(out),
		hash:       normalizedHash(plaintext),
	}, nil
}

// Decrypt reverses Encrypt. Callers invoke this only at response assembly
// (API serialization, ticket printing) - never mid-transition.
func (k *KeySource) Decrypt(v Value) (string, error) {
	if v.ciphertext == "" {
		return "", nil
	}
	if !k.configured() {
		return "", ErrEncryptionKeyMissing
	}

	var encoded encryptedPayload
	if err := json.Unmarshal([]byte(v.ciphertext), &encoded); err != nil {
		return "", ErrInvalidCiphertext
	}

	nonce, err := base64.RawStdEncoding.DecodeString(encoded.Nonce)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(encoded.Ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// Stored returns the serialized ciphertext for persistence.
func (v Value) Stored() string { return v.ciphertext }

// NormalizedHash returns the lookup hash for persistence/equality queries.
func (v Value) NormalizedHash() string { return v.hash }

// FromStored reconstructs a Value from its persisted ciphertext and hash,
// e.g. when hydrating a gorm model.
func FromStored(ciphertext, hash string) Value {
	return Value{ciphertext: ciphertext, hash: hash}
}

func normalizedHash(plaintext string) string {
	normalized := strings.ToLower(strings.TrimSpace(plaintext))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
