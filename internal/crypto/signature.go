package crypto

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Scheme identifies a signature algorithm used by license material.
type Scheme int

const (
	// SchemeUnknown is the zero value and never verifies.
	SchemeUnknown Scheme = iota
	// SchemeRSAPSS is RSA-2048 with PSS padding over SHA-256.
	SchemeRSAPSS
	// SchemeRSAPKCS1 is RSA-2048 with PKCS#1 v1.5 padding over SHA-256.
	SchemeRSAPKCS1
	// SchemeEd25519 is Ed25519 over the raw message.
	SchemeEd25519
)

var (
	// ErrUnsupportedScheme indicates the scheme has no verification method.
	ErrUnsupportedScheme = errors.New("unsupported signature scheme")
	// ErrInvalidPublicKey indicates the public key could not be parsed for the scheme.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// String returns a short name for logs.
func (s Scheme) String() string {
	switch s {
	case SchemeRSAPSS:
		return "rsa-pss-sha256"
	case SchemeRSAPKCS1:
		return "rsa-sha256"
	case SchemeEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// method maps a scheme onto the jwt signing method implementing it. PS256
// verifies with an automatically detected salt length.
func (s Scheme) method() (jwt.SigningMethod, error) {
	switch s {
	case SchemeRSAPSS:
		return jwt.SigningMethodPS256, nil
	case SchemeRSAPKCS1:
		return jwt.SigningMethodRS256, nil
	case SchemeEd25519:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, ErrUnsupportedScheme
	}
}

// ParsePublicKey parses key material for the given scheme. RSA keys must be
// PEM encoded. Ed25519 keys may be PEM, hex (64 chars) or base64 of the raw
// 32-byte key.
func ParsePublicKey(scheme Scheme, material string) (stdcrypto.PublicKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, ErrInvalidPublicKey
	}

	switch scheme {
	case SchemeRSAPSS, SchemeRSAPKCS1:
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(material))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return key, nil
	case SchemeEd25519:
		return parseEd25519PublicKey(material)
	default:
		return nil, ErrUnsupportedScheme
	}
}

func parseEd25519PublicKey(material string) (ed25519.PublicKey, error) {
	if strings.HasPrefix(material, "-----BEGIN") {
		key, err := jwt.ParseEdPublicKeyFromPEM([]byte(material))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		edKey, ok := key.(ed25519.PublicKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		return edKey, nil
	}

	if len(material) == hex.EncodedLen(ed25519.PublicKeySize) {
		if raw, err := hex.DecodeString(material); err == nil {
			return ed25519.PublicKey(raw), nil
		}
	}

	raw, err := base64.StdEncoding.DecodeString(material)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	return ed25519.PublicKey(raw), nil
}

// VerifySignature checks sig over message with publicKey using scheme.
// Malformed keys, unknown schemes and panics inside the primitives all
// report false.
func VerifySignature(scheme Scheme, publicKey string, message, sig []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	method, err := scheme.method()
	if err != nil {
		return false
	}
	key, err := ParsePublicKey(scheme, publicKey)
	if err != nil {
		return false
	}
	return method.Verify(string(message), sig, key) == nil
}

// Sign produces a signature over message. The key must be an *rsa.PrivateKey
// for the RSA schemes and an ed25519.PrivateKey for SchemeEd25519.
func Sign(scheme Scheme, key stdcrypto.Signer, message []byte) ([]byte, error) {
	method, err := scheme.method()
	if err != nil {
		return nil, err
	}
	sig, err := method.Sign(string(message), key)
	if err != nil {
		return nil, fmt.Errorf("sign with %s: %w", scheme, err)
	}
	return sig, nil
}
