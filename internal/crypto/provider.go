package crypto

import (
	stdcrypto "crypto"
)

// Provider is the set of primitives the verifiers depend on. Std is the
// production implementation; tests may substitute their own.
type Provider interface {
	Verify(scheme Scheme, publicKey string, message, sig []byte) bool
	Sign(scheme Scheme, key stdcrypto.Signer, message []byte) ([]byte, error)
	Encrypt(secret string, plaintext []byte) (Sealed, error)
	Decrypt(secret string, sealed Sealed) ([]byte, error)
	HMACSHA256(secret, message []byte) []byte
}

// Std implements Provider with the package level functions.
type Std struct{}

var _ Provider = Std{}

func (Std) Verify(scheme Scheme, publicKey string, message, sig []byte) bool {
	return VerifySignature(scheme, publicKey, message, sig)
}

func (Std) Sign(scheme Scheme, key stdcrypto.Signer, message []byte) ([]byte, error) {
	return Sign(scheme, key, message)
}

func (Std) Encrypt(secret string, plaintext []byte) (Sealed, error) {
	return EncryptAESGCM(secret, plaintext)
}

func (Std) Decrypt(secret string, sealed Sealed) ([]byte, error) {
	return DecryptAESGCM(secret, sealed)
}

func (Std) HMACSHA256(secret, message []byte) []byte {
	return HMACSHA256(secret, message)
}

// OrStd returns p, or Std when p is nil.
func OrStd(p Provider) Provider {
	if p == nil {
		return Std{}
	}
	return p
}
