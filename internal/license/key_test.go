package license_test

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstatushq/entitlements/internal/crypto"
	"github.com/openstatushq/entitlements/internal/license"
	"github.com/openstatushq/entitlements/internal/license/licensetest"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newKeyVerifier(pub string) *license.KeyVerifier {
	v := license.NewKeyVerifier(license.Config{PublicKey: pub})
	v.Now = func() time.Time { return fixedNow }
	return v
}

func TestKeyVerifier_ValidAllSchemes(t *testing.T) {
	for _, scheme := range []crypto.Scheme{crypto.SchemeRSAPSS, crypto.SchemeRSAPKCS1, crypto.SchemeEd25519} {
		t.Run(scheme.String(), func(t *testing.T) {
			issuer := licensetest.NewIssuer(t, scheme)
			key := issuer.Key(t, map[string]any{
				"id":       "lic-1",
				"status":   "ACTIVE",
				"policy":   "pol-1",
				"expiry":   fixedNow.Add(24 * time.Hour).Format(time.RFC3339),
				"metadata": map[string]any{"plan": "enterprise"},
			})

			res := newKeyVerifier(issuer.PublicKey()).Verify(key)
			require.True(t, res.Valid, res.Detail)
			assert.Equal(t, license.CodeValid, res.Code)
			require.NotNil(t, res.License)
			assert.Equal(t, "lic-1", res.License.ID)
			assert.Equal(t, "pol-1", res.License.Policy)
			assert.Equal(t, key, res.License.Key)
			assert.Equal(t, "enterprise", res.License.Plan())
		})
	}
}

func TestKeyVerifier_FlippedSignatureByte(t *testing.T) {
	issuer := licensetest.NewIssuer(t, crypto.SchemeEd25519)
	key := issuer.Key(t, map[string]any{"id": "lic-1", "status": "ACTIVE"})

	idx := strings.LastIndex(key, ".")
	sig, err := base64.StdEncoding.DecodeString(key[idx+1:])
	require.NoError(t, err)

	v := newKeyVerifier(issuer.PublicKey())
	for i := range sig {
		flipped := append([]byte(nil), sig...)
		flipped[i] ^= 0x80
		tampered := key[:idx+1] + base64.StdEncoding.EncodeToString(flipped)
		res := v.Verify(tampered)
		if res.Code != license.CodeInvalidSignature {
			t.Fatalf("byte %d: got %s, want INVALID_SIGNATURE", i, res.Code)
		}
	}
}

func TestKeyVerifier_Failures(t *testing.T) {
	issuer := licensetest.NewIssuer(t, crypto.SchemeEd25519)
	other := licensetest.NewIssuer(t, crypto.SchemeEd25519)
	good := issuer.Key(t, map[string]any{"id": "lic-1"})
	data := base64.RawURLEncoding.EncodeToString([]byte(`{"id":"lic-1"}`))

	notJSON := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	notJSONKey := "key/ED25519_SIGN." + notJSON + "." +
		base64.StdEncoding.EncodeToString(issuer.Sign(t, []byte("ED25519_SIGN."+notJSON)))

	tests := []struct {
		name string
		key  string
		pub  string
		want license.Code
	}{
		{"missing prefix", strings.TrimPrefix(good, "key/"), issuer.PublicKey(), license.CodeInvalidFormat},
		{"two parts", "key/ED25519_SIGN." + data, issuer.PublicKey(), license.CodeInvalidFormat},
		{"four parts", good + ".extra", issuer.PublicKey(), license.CodeInvalidFormat},
		{"empty part", "key/ED25519_SIGN..c2ln", issuer.PublicKey(), license.CodeInvalidFormat},
		{"unknown scheme", "key/HMAC_SIGN." + data + ".c2ln", issuer.PublicKey(), license.CodeUnsupportedScheme},
		{"no public key", good, "", license.CodeMissingPublicKey},
		{"wrong public key", good, other.PublicKey(), license.CodeInvalidSignature},
		{"garbage public key", good, "not a key", license.CodeInvalidSignature},
		{"signature not base64", "key/ED25519_SIGN." + data + ".!!!", issuer.PublicKey(), license.CodeInvalidSignature},
		{"payload not json", notJSONKey, issuer.PublicKey(), license.CodeParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newKeyVerifier(tt.pub).Verify(tt.key)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Code)
			assert.NotEmpty(t, res.Detail)
		})
	}
}

func TestKeyVerifier_Expiry(t *testing.T) {
	issuer := licensetest.NewIssuer(t, crypto.SchemeRSAPSS)
	v := newKeyVerifier(issuer.PublicKey())

	t.Run("exp in past", func(t *testing.T) {
		res := v.Verify(issuer.Key(t, map[string]any{
			"id":     "lic-1",
			"status": "SUSPENDED",
			"exp":    fixedNow.Add(-time.Hour).Unix(),
		}))
		assert.Equal(t, license.CodeExpired, res.Code)
		require.NotNil(t, res.License)
		assert.Equal(t, "lic-1", res.License.ID)
	})

	t.Run("expiry equal to now", func(t *testing.T) {
		res := v.Verify(issuer.Key(t, map[string]any{
			"id":     "lic-1",
			"expiry": fixedNow.Format(time.RFC3339),
		}))
		assert.Equal(t, license.CodeExpired, res.Code)
	})

	t.Run("exp wins over expiry", func(t *testing.T) {
		res := v.Verify(issuer.Key(t, map[string]any{
			"id":     "lic-1",
			"status": "ACTIVE",
			"exp":    fixedNow.Add(time.Hour).Unix(),
			"expiry": fixedNow.Add(-time.Hour).Format(time.RFC3339),
		}))
		assert.Equal(t, license.CodeValid, res.Code)
		require.NotNil(t, res.License.Expiry)
		assert.Equal(t, fixedNow.Add(time.Hour).Unix(), res.License.Expiry.Unix())
	})

	t.Run("unparseable expiry", func(t *testing.T) {
		res := v.Verify(issuer.Key(t, map[string]any{"id": "lic-1", "expiry": "next tuesday"}))
		assert.Equal(t, license.CodeParseError, res.Code)
	})

	for _, exp := range []any{1e19, -1e19, 1700000000.5} {
		t.Run(fmt.Sprintf("invalid exp %v", exp), func(t *testing.T) {
			res := v.Verify(issuer.Key(t, map[string]any{"id": "lic-1", "status": "ACTIVE", "exp": exp}))
			assert.Equal(t, license.CodeParseError, res.Code)
			assert.Nil(t, res.License)
		})
	}
}

func TestKeyVerifier_Status(t *testing.T) {
	issuer := licensetest.NewIssuer(t, crypto.SchemeEd25519)
	v := newKeyVerifier(issuer.PublicKey())

	tests := []struct {
		status string
		want   license.Code
	}{
		{"ACTIVE", license.CodeValid},
		{"active", license.CodeValid},
		{"", license.CodeValid},
		{"suspended", "SUSPENDED"},
		{"BANNED", "BANNED"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			res := v.Verify(issuer.Key(t, map[string]any{"id": "lic-1", "status": tt.status}))
			assert.Equal(t, tt.want, res.Code)
			assert.Equal(t, tt.want == license.CodeValid, res.Valid)
			require.NotNil(t, res.License)
		})
	}
}

func TestKeyVerifier_WithPublicKeyOverride(t *testing.T) {
	issuer := licensetest.NewIssuer(t, crypto.SchemeEd25519)
	key := issuer.Key(t, map[string]any{"id": "lic-1"})

	v := newKeyVerifier("")
	assert.Equal(t, license.CodeMissingPublicKey, v.Verify(key).Code)
	assert.Equal(t, license.CodeValid, v.Verify(key, license.WithPublicKey(issuer.PublicKey())).Code)
}

type rejectingProvider struct {
	crypto.Std
	calls int
}

func (p *rejectingProvider) Verify(crypto.Scheme, string, []byte, []byte) bool {
	p.calls++
	return false
}

func TestKeyVerifier_UsesInjectedProvider(t *testing.T) {
	issuer := licensetest.NewIssuer(t, crypto.SchemeEd25519)
	p := &rejectingProvider{}
	v := newKeyVerifier(issuer.PublicKey())
	v.Provider = p

	res := v.Verify(issuer.Key(t, map[string]any{"id": "lic-1"}))
	assert.Equal(t, license.CodeInvalidSignature, res.Code)
	assert.Equal(t, 1, p.calls)
}
