// Package crypto provides the signature, decryption and MAC primitives used to
// verify license material offline.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// NonceSize is the size of the AES-GCM nonce (12 bytes standard).
	NonceSize = 12

	// KeySize is the size of the AES-256 key (32 bytes).
	KeySize = 32

	// TagSize is the size of the GCM authentication tag.
	TagSize = 16
)

var (
	// ErrInvalidSealedFormat indicates the sealed payload is not ciphertext.iv.tag.
	ErrInvalidSealedFormat = errors.New("sealed payload must be ciphertext.iv.tag")
	// ErrDecryptionFailed indicates the decryption operation failed.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrMissingSecret indicates no secret was supplied to derive the key from.
	ErrMissingSecret = errors.New("missing decryption secret")
)

// Sealed is an AES-256-GCM payload with its IV and tag kept separately.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// String encodes the payload as base64(ciphertext).base64(iv).base64(tag).
func (s Sealed) String() string {
	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(s.Ciphertext),
		base64.StdEncoding.EncodeToString(s.IV),
		base64.StdEncoding.EncodeToString(s.Tag),
	}, ".")
}

// ParseSealed decodes the ciphertext.iv.tag format. All three parts must be
// present and valid base64.
func ParseSealed(encoded string) (Sealed, error) {
	parts := strings.Split(encoded, ".")
	if len(parts) != 3 {
		return Sealed{}, ErrInvalidSealedFormat
	}

	decoded := make([][]byte, 3)
	for i, part := range parts {
		if part == "" {
			return Sealed{}, ErrInvalidSealedFormat
		}
		b, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return Sealed{}, fmt.Errorf("%w: %v", ErrInvalidSealedFormat, err)
		}
		decoded[i] = b
	}

	return Sealed{Ciphertext: decoded[0], IV: decoded[1], Tag: decoded[2]}, nil
}

// DeriveKey returns the AES-256 key for a secret: SHA256(secret).
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// EncryptAESGCM seals plaintext with a key derived from secret and a random IV.
func EncryptAESGCM(secret string, plaintext []byte) (Sealed, error) {
	if secret == "" {
		return Sealed{}, ErrMissingSecret
	}

	gcm, err := newGCM(DeriveKey(secret), NonceSize)
	if err != nil {
		return Sealed{}, err
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Sealed{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal returns ciphertext || tag
	out := gcm.Seal(nil, iv, plaintext, nil)
	split := len(out) - gcm.Overhead()

	return Sealed{
		Ciphertext: out[:split],
		IV:         iv,
		Tag:        out[split:],
	}, nil
}

// DecryptAESGCM opens a sealed payload with a key derived from secret.
// Any failure, including a tag mismatch, is reported as ErrDecryptionFailed.
func DecryptAESGCM(secret string, sealed Sealed) (plaintext []byte, err error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if len(sealed.IV) == 0 || len(sealed.Tag) != TagSize {
		return nil, ErrDecryptionFailed
	}

	defer func() {
		if r := recover(); r != nil {
			plaintext, err = nil, ErrDecryptionFailed
		}
	}()

	gcm, err := newGCM(DeriveKey(secret), len(sealed.IV))
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	buf := make([]byte, 0, len(sealed.Ciphertext)+len(sealed.Tag))
	buf = append(buf, sealed.Ciphertext...)
	buf = append(buf, sealed.Tag...)

	plaintext, err = gcm.Open(nil, sealed.IV, buf, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if nonceSize == NonceSize {
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return gcm, nil
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
