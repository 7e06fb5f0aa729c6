// Package licensetest issues real signed license keys and license files for
// tests.
package licensetest

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openstatushq/entitlements/internal/crypto"
)

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
	rsaErr  error
)

// sharedRSAKey generates one 2048-bit key per test binary.
func sharedRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	rsaOnce.Do(func() {
		rsaKey, rsaErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if rsaErr != nil {
		t.Fatalf("generate rsa key: %v", rsaErr)
	}
	return rsaKey
}

// Issuer signs license material with one key pair.
type Issuer struct {
	Scheme    crypto.Scheme
	signer    stdcrypto.Signer
	publicPEM string
	rawPublic []byte
}

// NewIssuer creates an issuer for scheme. RSA schemes share a cached key.
func NewIssuer(t testing.TB, scheme crypto.Scheme) *Issuer {
	t.Helper()

	var (
		signer stdcrypto.Signer
		pub    any
		raw    []byte
	)
	switch scheme {
	case crypto.SchemeRSAPSS, crypto.SchemeRSAPKCS1:
		key := sharedRSAKey(t)
		signer, pub = key, &key.PublicKey
	case crypto.SchemeEd25519:
		edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate ed25519 key: %v", err)
		}
		signer, pub, raw = edPriv, edPub, edPub
	default:
		t.Fatalf("unsupported scheme %s", scheme)
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return &Issuer{
		Scheme:    scheme,
		signer:    signer,
		publicPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		rawPublic: raw,
	}
}

// PublicKey returns the PEM encoded public key.
func (i *Issuer) PublicKey() string {
	return i.publicPEM
}

// RawPublicKey returns the raw Ed25519 public key, or nil for RSA.
func (i *Issuer) RawPublicKey() []byte {
	return i.rawPublic
}

// Sign signs message with the issuer's key.
func (i *Issuer) Sign(t testing.TB, message []byte) []byte {
	t.Helper()
	sig, err := crypto.Sign(i.Scheme, i.signer, message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

// KeyTag returns the license key scheme tag for the issuer's scheme.
func (i *Issuer) KeyTag() string {
	switch i.Scheme {
	case crypto.SchemeRSAPSS:
		return "RSA_2048_PKCS1_PSS_SIGN_V2"
	case crypto.SchemeRSAPKCS1:
		return "RSA_2048_PKCS1_SIGN_V2"
	default:
		return "ED25519_SIGN"
	}
}

// FileAlgorithm returns the license file algorithm tag for the issuer's
// scheme, encrypted or not.
func (i *Issuer) FileAlgorithm(encrypted bool) string {
	prefix := "base64+"
	if encrypted {
		prefix = "aes-256-gcm+"
	}
	switch i.Scheme {
	case crypto.SchemeRSAPSS:
		return prefix + "rsa-pss-sha256"
	case crypto.SchemeRSAPKCS1:
		return prefix + "rsa-sha256"
	default:
		return prefix + "ed25519"
	}
}

// Key issues a license key carrying payload as its data segment.
func (i *Issuer) Key(t testing.TB, payload any) string {
	t.Helper()
	data := base64.RawURLEncoding.EncodeToString(mustJSON(t, payload))
	signingInput := i.KeyTag() + "." + data
	sig := i.Sign(t, []byte(signingInput))
	return "key/" + signingInput + "." + base64.StdEncoding.EncodeToString(sig)
}

// File issues a license file for doc. A non-empty licenseKey encrypts the
// payload with it.
func (i *Issuer) File(t testing.TB, doc any, licenseKey string) string {
	t.Helper()
	plaintext := mustJSON(t, doc)

	encrypted := licenseKey != ""
	var enc string
	if encrypted {
		sealed, err := crypto.EncryptAESGCM(licenseKey, plaintext)
		if err != nil {
			t.Fatalf("encrypt license file: %v", err)
		}
		enc = sealed.String()
	} else {
		enc = base64.StdEncoding.EncodeToString(plaintext)
	}

	sig := i.Sign(t, []byte("license/"+enc))
	return Envelope(t, map[string]string{
		"enc": enc,
		"sig": base64.StdEncoding.EncodeToString(sig),
		"alg": i.FileAlgorithm(encrypted),
	})
}

// Envelope wraps an arbitrary envelope in license file markers.
func Envelope(t testing.TB, envelope any) string {
	t.Helper()
	return Wrap(base64.StdEncoding.EncodeToString(mustJSON(t, envelope)))
}

// Wrap frames body in license file markers with 64 character lines.
func Wrap(body string) string {
	var b strings.Builder
	b.WriteString("-----BEGIN LICENSE FILE-----\n")
	for len(body) > 64 {
		b.WriteString(body[:64])
		b.WriteByte('\n')
		body = body[64:]
	}
	if body != "" {
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteString("-----END LICENSE FILE-----\n")
	return b.String()
}

// Entitlement is an included entitlement for Document.
type Entitlement struct {
	ID       string
	Code     string
	Metadata map[string]any
}

// Document builds a license file payload. Zero issued or expiry times are
// left out of meta.
func Document(id string, attributes map[string]any, entitlements []Entitlement, issued, expiry time.Time) map[string]any {
	included := make([]map[string]any, 0, len(entitlements))
	for _, e := range entitlements {
		included = append(included, map[string]any{
			"id":   e.ID,
			"type": "entitlements",
			"attributes": map[string]any{
				"code":     e.Code,
				"metadata": e.Metadata,
			},
		})
	}

	meta := map[string]any{"ttl": 1209600}
	if !issued.IsZero() {
		meta["issued"] = issued.UTC().Format(time.RFC3339)
	}
	if !expiry.IsZero() {
		meta["expiry"] = expiry.UTC().Format(time.RFC3339)
	}

	return map[string]any{
		"data": map[string]any{
			"id":         id,
			"type":       "licenses",
			"attributes": attributes,
		},
		"included": included,
		"meta":     meta,
	}
}

func mustJSON(t testing.TB, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
