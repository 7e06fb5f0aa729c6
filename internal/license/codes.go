// Package license verifies offline license keys and license files, maps
// provider entitlements and resolves the organization type that drives
// resource limits and feature gating.
package license

import "strings"

// Code is the outcome of a verification. Every verification returns one; none
// of them are raised as Go errors.
type Code string

const (
	// CodeValid means the material verified and the license is usable.
	CodeValid Code = "VALID"

	// Format errors.
	CodeInvalidFormat          Code = "INVALID_FORMAT"
	CodeInvalidCertificate     Code = "INVALID_CERTIFICATE"
	CodeInvalidEncryptedFormat Code = "INVALID_ENCRYPTED_FORMAT"
	CodeParseError             Code = "PARSE_ERROR"

	// Cryptographic errors.
	CodeInvalidSignature      Code = "INVALID_SIGNATURE"
	CodeDecryptionFailed      Code = "DECRYPTION_FAILED"
	CodeDecryptionKeyRequired Code = "DECRYPTION_KEY_REQUIRED"
	CodeUnsupportedScheme     Code = "UNSUPPORTED_SCHEME"
	CodeUnsupportedAlgorithm  Code = "UNSUPPORTED_ALGORITHM"

	// Temporal errors.
	CodeExpired            Code = "EXPIRED"
	CodeClockDrift         Code = "CLOCK_DRIFT"
	CodeLicenseFileExpired Code = "LICENSE_FILE_EXPIRED"

	// Configuration errors.
	CodeMissingPublicKey Code = "MISSING_PUBLIC_KEY"
)

// Category groups codes by how a caller should react to them.
type Category string

const (
	CategoryNone          Category = "none"
	CategoryFormat        Category = "format"
	CategoryCryptographic Category = "cryptographic"
	CategoryTemporal      Category = "temporal"
	CategoryStatus        Category = "status"
	CategoryConfiguration Category = "configuration"
)

// Category classifies the code. Codes not in the fixed set are provider
// statuses passed through verbatim (SUSPENDED, BANNED, ...).
func (c Code) Category() Category {
	switch c {
	case CodeValid:
		return CategoryNone
	case CodeInvalidFormat, CodeInvalidCertificate, CodeInvalidEncryptedFormat, CodeParseError:
		return CategoryFormat
	case CodeInvalidSignature, CodeDecryptionFailed, CodeDecryptionKeyRequired,
		CodeUnsupportedScheme, CodeUnsupportedAlgorithm:
		return CategoryCryptographic
	case CodeExpired, CodeClockDrift, CodeLicenseFileExpired:
		return CategoryTemporal
	case CodeMissingPublicKey:
		return CategoryConfiguration
	default:
		return CategoryStatus
	}
}

// Renewable reports whether re-fetching or re-issuing the license can fix
// the failure, as opposed to contacting support.
func (c Code) Renewable() bool {
	return c.Category() == CategoryTemporal
}

// statusCode turns a provider status into the code reported for it.
func statusCode(status string) Code {
	return Code(strings.ToUpper(status))
}
