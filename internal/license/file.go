package license

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openstatushq/entitlements/internal/crypto"
)

const (
	// FileBeginMarker opens a license file certificate.
	FileBeginMarker = "-----BEGIN LICENSE FILE-----"
	// FileEndMarker closes a license file certificate.
	FileEndMarker = "-----END LICENSE FILE-----"

	// MaxClockDrift is how far in the future a license file may claim to
	// have been issued before the local clock is considered wrong.
	MaxClockDrift = 5 * time.Minute

	fileSigningPrefix = "license/"
)

// FileMeta is the issuance metadata embedded in a license file.
type FileMeta struct {
	Issued *time.Time `json:"issued,omitempty"`
	Expiry *time.Time `json:"expiry,omitempty"`
	TTL    int        `json:"ttl,omitempty"`
}

// FileResult is the outcome of verifying a license file certificate.
type FileResult struct {
	Valid     bool           `json:"valid"`
	Code      Code           `json:"code"`
	Detail    string         `json:"detail,omitempty"`
	Algorithm string         `json:"algorithm,omitempty"`
	License   *LicenseRecord `json:"license,omitempty"`
	Meta      *FileMeta      `json:"meta,omitempty"`
}

// fileEnvelope is the base64 JSON body between the markers.
type fileEnvelope struct {
	Enc string `json:"enc"`
	Sig string `json:"sig"`
	Alg string `json:"alg"`
}

// filePayload is the JSON:API document carried in enc.
type filePayload struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Key      string         `json:"key"`
			Expiry   *string        `json:"expiry"`
			Status   string         `json:"status"`
			Policy   string         `json:"policy"`
			Metadata map[string]any `json:"metadata"`
		} `json:"attributes"`
		Relationships struct {
			Policy struct {
				Data *struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"policy"`
		} `json:"relationships"`
	} `json:"data"`
	Included []fileIncluded `json:"included"`
	Meta     struct {
		Issued *string `json:"issued"`
		Expiry *string `json:"expiry"`
		TTL    int     `json:"ttl"`
	} `json:"meta"`
}

type fileIncluded struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Code     string              `json:"code"`
		Metadata EntitlementMetadata `json:"metadata"`
	} `json:"attributes"`
}

var errMissingMarkers = errors.New("license file markers not found")

// FileVerifier verifies license file certificates offline.
type FileVerifier struct {
	Config   Config
	Provider crypto.Provider
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewFileVerifier creates a verifier using the standard crypto provider.
func NewFileVerifier(cfg Config) *FileVerifier {
	return &FileVerifier{Config: cfg, Provider: crypto.Std{}}
}

// Verify checks a license file. licenseKey is only needed when the payload is
// encrypted. The signature is always checked before anything is decrypted or
// parsed, and the issuance window is checked before any license field is used.
func (v *FileVerifier) Verify(certificate, licenseKey string, opts ...VerifyOption) FileResult {
	o := verifyOptions{publicKey: v.Config.PublicKey}
	for _, opt := range opts {
		opt(&o)
	}
	provider := crypto.OrStd(v.Provider)

	body, err := extractFileBody(certificate)
	if err != nil {
		return fileFailure(CodeInvalidFormat, err.Error())
	}

	rawEnvelope, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return fileFailure(CodeInvalidCertificate, "license file body is not valid base64")
	}

	var env fileEnvelope
	if err := json.Unmarshal(rawEnvelope, &env); err != nil {
		return fileFailure(CodeInvalidCertificate, "license file body is not valid JSON")
	}
	if env.Enc == "" || env.Sig == "" || env.Alg == "" {
		return fileFailure(CodeInvalidCertificate, "license file must contain enc, sig and alg")
	}

	alg, ok := ParseAlgorithm(env.Alg)
	if !ok {
		return fileFailure(CodeUnsupportedAlgorithm, fmt.Sprintf("unsupported license file algorithm %q", env.Alg))
	}
	if o.publicKey == "" {
		return fileFailure(CodeMissingPublicKey, "no public key configured for license verification")
	}

	sig, err := decodeSignature(env.Sig)
	if err != nil {
		return withAlgorithm(fileFailure(CodeInvalidSignature, "license file signature is not valid base64"), alg)
	}
	if !provider.Verify(alg.Scheme(), o.publicKey, []byte(fileSigningPrefix+env.Enc), sig) {
		return withAlgorithm(fileFailure(CodeInvalidSignature, "license file signature does not match"), alg)
	}

	var plaintext []byte
	if alg.Encrypted() {
		sealed, err := crypto.ParseSealed(env.Enc)
		if err != nil {
			return withAlgorithm(fileFailure(CodeInvalidEncryptedFormat, "encrypted payload must be ciphertext.iv.tag"), alg)
		}
		if licenseKey == "" {
			return withAlgorithm(fileFailure(CodeDecryptionKeyRequired, "a license key is required to decrypt this license file"), alg)
		}
		plaintext, err = provider.Decrypt(licenseKey, sealed)
		if err != nil {
			return withAlgorithm(fileFailure(CodeDecryptionFailed, "license file could not be decrypted with the given key"), alg)
		}
	} else {
		plaintext, err = base64.StdEncoding.DecodeString(env.Enc)
		if err != nil {
			return withAlgorithm(fileFailure(CodeParseError, "license file payload is not valid base64"), alg)
		}
	}

	var payload filePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return withAlgorithm(fileFailure(CodeParseError, "license file payload is not valid JSON"), alg)
	}

	meta, err := parseFileMeta(payload)
	if err != nil {
		return withAlgorithm(fileFailure(CodeParseError, err.Error()), alg)
	}

	now := nowOr(v.Now)
	if meta.Issued != nil && meta.Issued.After(now.Add(MaxClockDrift)) {
		res := fileFailure(CodeClockDrift, "license file was issued in the future; check the system clock")
		res.Meta = meta
		return withAlgorithm(res, alg)
	}
	if meta.Expiry != nil && meta.Expiry.Before(now) {
		res := fileFailure(CodeLicenseFileExpired, "license file expired at "+meta.Expiry.Format(time.RFC3339))
		res.Meta = meta
		return withAlgorithm(res, alg)
	}

	record, err := recordFromFilePayload(payload)
	if err != nil {
		return withAlgorithm(fileFailure(CodeParseError, err.Error()), alg)
	}

	return FileResult{
		Valid:     true,
		Code:      CodeValid,
		Algorithm: alg.String(),
		License:   record,
		Meta:      meta,
	}
}

// extractFileBody returns the whitespace-free body between the markers.
func extractFileBody(certificate string) (string, error) {
	start := strings.Index(certificate, FileBeginMarker)
	end := strings.Index(certificate, FileEndMarker)
	if start < 0 || end < 0 || end < start {
		return "", errMissingMarkers
	}
	body := certificate[start+len(FileBeginMarker) : end]
	return strings.Join(strings.Fields(body), ""), nil
}

func parseFileMeta(p filePayload) (*FileMeta, error) {
	meta := &FileMeta{TTL: p.Meta.TTL}
	if p.Meta.Issued != nil && *p.Meta.Issued != "" {
		t, err := parseTimestamp(*p.Meta.Issued)
		if err != nil {
			return nil, fmt.Errorf("license file issued: %w", err)
		}
		meta.Issued = &t
	}
	if p.Meta.Expiry != nil && *p.Meta.Expiry != "" {
		t, err := parseTimestamp(*p.Meta.Expiry)
		if err != nil {
			return nil, fmt.Errorf("license file expiry: %w", err)
		}
		meta.Expiry = &t
	}
	return meta, nil
}

func recordFromFilePayload(p filePayload) (*LicenseRecord, error) {
	attrs := p.Data.Attributes
	record := &LicenseRecord{
		ID:       p.Data.ID,
		Key:      attrs.Key,
		Status:   attrs.Status,
		Policy:   attrs.Policy,
		Metadata: attrs.Metadata,
	}
	if rel := p.Data.Relationships.Policy.Data; rel != nil && rel.ID != "" {
		record.Policy = rel.ID
	}
	if attrs.Expiry != nil && *attrs.Expiry != "" {
		t, err := parseTimestamp(*attrs.Expiry)
		if err != nil {
			return nil, fmt.Errorf("license expiry: %w", err)
		}
		record.Expiry = &t
	}

	for _, inc := range p.Included {
		if inc.Type != "entitlements" {
			continue
		}
		record.Entitlements = append(record.Entitlements, RawEntitlement{
			ID:       inc.ID,
			Code:     inc.Attributes.Code,
			Metadata: inc.Attributes.Metadata,
		})
	}
	return record, nil
}

func fileFailure(code Code, detail string) FileResult {
	return FileResult{Code: code, Detail: detail}
}

func withAlgorithm(res FileResult, alg Algorithm) FileResult {
	res.Algorithm = alg.String()
	return res
}
