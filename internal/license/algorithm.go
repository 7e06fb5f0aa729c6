package license

import "github.com/openstatushq/entitlements/internal/crypto"

// Algorithm is the closed set of license file algorithms. Each one fixes
// whether the payload is encrypted and which signature scheme covers it.
type Algorithm int

const (
	AlgorithmUnknown Algorithm = iota
	AlgorithmAESGCMEd25519
	AlgorithmBase64Ed25519
	AlgorithmAESGCMRSAPSS
	AlgorithmBase64RSAPSS
	AlgorithmAESGCMRSAPKCS1
	AlgorithmBase64RSAPKCS1
)

var algorithmTags = map[Algorithm]string{
	AlgorithmAESGCMEd25519:  "aes-256-gcm+ed25519",
	AlgorithmBase64Ed25519:  "base64+ed25519",
	AlgorithmAESGCMRSAPSS:   "aes-256-gcm+rsa-pss-sha256",
	AlgorithmBase64RSAPSS:   "base64+rsa-pss-sha256",
	AlgorithmAESGCMRSAPKCS1: "aes-256-gcm+rsa-sha256",
	AlgorithmBase64RSAPKCS1: "base64+rsa-sha256",
}

// ParseAlgorithm maps a tag such as "aes-256-gcm+ed25519" to its Algorithm.
func ParseAlgorithm(tag string) (Algorithm, bool) {
	for alg, t := range algorithmTags {
		if t == tag {
			return alg, true
		}
	}
	return AlgorithmUnknown, false
}

// String returns the wire tag.
func (a Algorithm) String() string {
	if t, ok := algorithmTags[a]; ok {
		return t
	}
	return "unknown"
}

// Encrypted reports whether the payload is AES-256-GCM encrypted.
func (a Algorithm) Encrypted() bool {
	switch a {
	case AlgorithmAESGCMEd25519, AlgorithmAESGCMRSAPSS, AlgorithmAESGCMRSAPKCS1:
		return true
	default:
		return false
	}
}

// Scheme returns the signature scheme covering the payload.
func (a Algorithm) Scheme() crypto.Scheme {
	switch a {
	case AlgorithmAESGCMEd25519, AlgorithmBase64Ed25519:
		return crypto.SchemeEd25519
	case AlgorithmAESGCMRSAPSS, AlgorithmBase64RSAPSS:
		return crypto.SchemeRSAPSS
	case AlgorithmAESGCMRSAPKCS1, AlgorithmBase64RSAPKCS1:
		return crypto.SchemeRSAPKCS1
	default:
		return crypto.SchemeUnknown
	}
}
