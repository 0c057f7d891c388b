// Package credentials resolves account passwords for login, supporting
// AEAD-encrypted values from the assignment store and plain environment
// variables.
package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD encrypts and decrypts stored passwords. Wire form is
// base64(nonce || ciphertext).
type AEAD struct {
	key []byte
}

// NewAEAD validates the key length for ChaCha20-Poly1305.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credentials key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &AEAD{key: key}, nil
}

// EncryptToString seals plaintext under a random nonce.
func (a *AEAD) EncryptToString(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(a.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(append(nonce, ct...)), nil
}

// DecryptString reverses EncryptToString.
func (a *AEAD) DecryptString(ciphertextB64 string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	aead, err := chacha20poly1305.NewX(a.key)
	if err != nil {
		return "", err
	}
	ns := aead.NonceSize()
	if len(buf) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	pt, err := aead.Open(nil, buf[:ns], buf[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(pt), nil
}

// Resolver yields the password for an account at login time. Credentials
// are looked up per call and never retained on the session.
type Resolver struct {
	aead *AEAD
}

// NewResolver returns a Resolver; aead may be nil when no encrypted
// credentials are in use.
func NewResolver(aead *AEAD) *Resolver {
	return &Resolver{aead: aead}
}

// Resolve returns the password for accountID. credentialsRef has two forms:
//   - "enc:<base64>" — an AEAD-encrypted value from the assignment store;
//   - an environment variable name, or empty to fall back to the
//     conventional <ACCOUNT>_PASSWORD variable.
func (r *Resolver) Resolve(accountID, credentialsRef string) (string, error) {
	if strings.HasPrefix(credentialsRef, "enc:") {
		if r.aead == nil {
			return "", fmt.Errorf("encrypted credential for %s but no key configured", accountID)
		}
		return r.aead.DecryptString(strings.TrimPrefix(credentialsRef, "enc:"))
	}

	envVar := credentialsRef
	if envVar == "" {
		envVar = strings.ToUpper(accountID) + "_PASSWORD"
	}
	password := os.Getenv(envVar)
	if password == "" {
		return "", fmt.Errorf("no password found for %s (env %s unset)", accountID, envVar)
	}
	return password, nil
}
