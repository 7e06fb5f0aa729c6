// Package webhooks verifies and decodes inbound license provider webhooks.
package webhooks

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/openstatushq/entitlements/internal/crypto"
	"github.com/openstatushq/entitlements/internal/license"
)

// Verifier checks webhook signatures. Headers of the form t=<unix>,v1=<hex>
// are HMAC-SHA256 signed with Secret; anything else is treated as a base64
// Ed25519 signature over the raw body, checked with PublicKey.
type Verifier struct {
	Secret    string
	PublicKey string
	Provider  crypto.Provider
	// Now defaults to time.Now.
	Now func() time.Time
	// Tolerance rejects HMAC signatures whose timestamp is further than this
	// from Now. Zero disables the check.
	Tolerance time.Duration
}

// NewVerifier creates a verifier from the provider configuration.
func NewVerifier(cfg license.Config) *Verifier {
	return &Verifier{
		Secret:    cfg.WebhookSecret,
		PublicKey: cfg.WebhookPublicKey,
		Provider:  crypto.Std{},
	}
}

// Option overrides verifier settings for one call.
type Option func(*options)

type options struct {
	secret    string
	publicKey string
}

// WithSecret verifies HMAC signatures with secret instead of Secret.
func WithSecret(secret string) Option {
	return func(o *options) {
		o.secret = secret
	}
}

// WithPublicKey verifies Ed25519 signatures with pk instead of PublicKey.
func WithPublicKey(pk string) Option {
	return func(o *options) {
		o.publicKey = pk
	}
}

// Verify reports whether header is a valid signature of payload. It fails
// closed: a missing secret or key, or any malformed input, yields false.
func (v *Verifier) Verify(payload, header string, opts ...Option) bool {
	o := options{secret: v.Secret, publicKey: v.PublicKey}
	for _, opt := range opts {
		opt(&o)
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if isTimestamped(header) {
		return v.verifyHMAC(payload, header, o.secret)
	}
	return v.verifyEd25519(payload, header, o.publicKey)
}

func isTimestamped(header string) bool {
	return strings.Contains(header, "t=") && strings.Contains(header, "v1=")
}

func (v *Verifier) verifyHMAC(payload, header, secret string) bool {
	if secret == "" {
		return false
	}

	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = val
		case "v1":
			signatures = append(signatures, val)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	if v.Tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return false
		}
		now := time.Now()
		if v.Now != nil {
			now = v.Now()
		}
		age := now.Sub(time.Unix(unix, 0))
		if age < 0 {
			age = -age
		}
		if age > v.Tolerance {
			return false
		}
	}

	expected := crypto.OrStd(v.Provider).HMACSHA256([]byte(secret), []byte(timestamp+"."+payload))
	matched := false
	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if crypto.ConstantTimeEqual(expected, got) {
			matched = true
		}
	}
	return matched
}

func (v *Verifier) verifyEd25519(payload, header, publicKey string) bool {
	if publicKey == "" {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		sig, err = base64.RawURLEncoding.DecodeString(header)
		if err != nil {
			return false
		}
	}
	return crypto.OrStd(v.Provider).Verify(crypto.SchemeEd25519, publicKey, []byte(payload), sig)
}
