package license

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openstatushq/entitlements/internal/crypto"
)

// KeyPrefix starts every signed license key.
const KeyPrefix = "key/"

// Signing scheme tags that appear in license keys.
const (
	SchemeTagRSAPSS   = "RSA_2048_PKCS1_PSS_SIGN_V2"
	SchemeTagRSAPKCS1 = "RSA_2048_PKCS1_SIGN_V2"
	SchemeTagEd25519  = "ED25519_SIGN"
)

// maxUnixSeconds is 9999-12-31T23:59:59Z, the last instant RFC 3339 can express.
const maxUnixSeconds = 253402300799

// keySchemes maps a key scheme tag to its signature primitive.
var keySchemes = map[string]crypto.Scheme{
	SchemeTagRSAPSS:   crypto.SchemeRSAPSS,
	SchemeTagRSAPKCS1: crypto.SchemeRSAPKCS1,
	SchemeTagEd25519:  crypto.SchemeEd25519,
}

// KeyResult is the outcome of verifying a license key. License is set when
// the signature verified, including for EXPIRED and status codes.
type KeyResult struct {
	Valid   bool           `json:"valid"`
	Code    Code           `json:"code"`
	Detail  string         `json:"detail,omitempty"`
	License *LicenseRecord `json:"license,omitempty"`
}

// keyPayload is the JSON structure encoded in the data segment of a key.
type keyPayload struct {
	ID       string         `json:"id"`
	Exp      *float64       `json:"exp"`
	Expiry   *string        `json:"expiry"`
	Status   string         `json:"status"`
	Policy   string         `json:"policy"`
	Metadata map[string]any `json:"metadata"`
}

// VerifyOption adjusts a single verification call.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	publicKey string
}

// WithPublicKey verifies against pk instead of the configured public key.
func WithPublicKey(pk string) VerifyOption {
	return func(o *verifyOptions) {
		o.publicKey = pk
	}
}

// KeyVerifier verifies signed license keys offline. The zero value is not
// usable without a public key, either configured or passed per call.
type KeyVerifier struct {
	Config   Config
	Provider crypto.Provider
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewKeyVerifier creates a verifier using the standard crypto provider.
func NewKeyVerifier(cfg Config) *KeyVerifier {
	return &KeyVerifier{Config: cfg, Provider: crypto.Std{}}
}

// Verify checks a key of the form key/<scheme>.<base64url data>.<base64 signature>.
func (v *KeyVerifier) Verify(key string, opts ...VerifyOption) KeyResult {
	o := verifyOptions{publicKey: v.Config.PublicKey}
	for _, opt := range opts {
		opt(&o)
	}

	if !strings.HasPrefix(key, KeyPrefix) {
		return keyFailure(CodeInvalidFormat, "license key must start with "+KeyPrefix, nil)
	}

	parts := strings.Split(strings.TrimPrefix(key, KeyPrefix), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return keyFailure(CodeInvalidFormat, "license key must have scheme, data and signature segments", nil)
	}
	schemeTag, data, encodedSig := parts[0], parts[1], parts[2]

	scheme, ok := keySchemes[schemeTag]
	if !ok {
		return keyFailure(CodeUnsupportedScheme, fmt.Sprintf("unsupported signing scheme %q", schemeTag), nil)
	}
	if o.publicKey == "" {
		return keyFailure(CodeMissingPublicKey, "no public key configured for license verification", nil)
	}

	sig, err := decodeSignature(encodedSig)
	if err != nil {
		return keyFailure(CodeInvalidSignature, "license key signature is not valid base64", nil)
	}

	signingInput := schemeTag + "." + data
	if !crypto.OrStd(v.Provider).Verify(scheme, o.publicKey, []byte(signingInput), sig) {
		return keyFailure(CodeInvalidSignature, "license key signature does not match", nil)
	}

	raw, err := decodeBase64URL(data)
	if err != nil {
		return keyFailure(CodeParseError, "license key data is not valid base64url", nil)
	}

	var payload keyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return keyFailure(CodeParseError, "license key data is not valid JSON", nil)
	}

	record := &LicenseRecord{
		ID:       payload.ID,
		Key:      key,
		Status:   payload.Status,
		Policy:   payload.Policy,
		Metadata: payload.Metadata,
	}

	switch {
	case payload.Exp != nil:
		secs := *payload.Exp
		if secs != math.Trunc(secs) || secs < -maxUnixSeconds || secs > maxUnixSeconds {
			return keyFailure(CodeParseError, "license key exp is not a valid Unix timestamp", nil)
		}
		exp := time.Unix(int64(secs), 0).UTC()
		record.Expiry = &exp
	case payload.Expiry != nil && *payload.Expiry != "":
		exp, err := parseTimestamp(*payload.Expiry)
		if err != nil {
			return keyFailure(CodeParseError, "license key expiry is not an ISO-8601 timestamp", nil)
		}
		record.Expiry = &exp
	}

	if record.IsExpired(nowOr(v.Now)) {
		return keyFailure(CodeExpired, "license expired at "+record.Expiry.Format(time.RFC3339), record)
	}

	if payload.Status != "" && !strings.EqualFold(payload.Status, "ACTIVE") {
		return keyFailure(statusCode(payload.Status), "license status is "+strings.ToUpper(payload.Status), record)
	}

	return KeyResult{Valid: true, Code: CodeValid, License: record}
}

func keyFailure(code Code, detail string, record *LicenseRecord) KeyResult {
	return KeyResult{Code: code, Detail: detail, License: record}
}

// decodeSignature accepts standard or URL-safe base64, padded or not.
func decodeSignature(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("decode signature: invalid base64")
}

// decodeBase64URL accepts URL-safe base64 with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
