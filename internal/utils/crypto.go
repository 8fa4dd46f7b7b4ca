// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"regexp"
	"strings"
)

const licenseKeyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// licenseKeyGroups is the 8-4-4-4-12 layout of a license key.
var licenseKeyGroups = []int{8, 4, 4, 4, 12}

var licenseKeyPattern = regexp.MustCompile(`^[A-Z0-9]{8}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{12}$`)

func GenerateRandomString(charset string, length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateLicenseKey returns a key shaped XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX.
// Uniqueness is only probabilistic; the store's unique index is authoritative.
func GenerateLicenseKey() (string, error) {
	parts := make([]string, len(licenseKeyGroups))
	for i, n := range licenseKeyGroups {
		part, err := GenerateRandomString(licenseKeyCharset, n)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return strings.Join(parts, "-"), nil
}

func IsLicenseKeyFormat(key string) bool {
	return licenseKeyPattern.MatchString(key)
}

// SecureCompare compares two secrets in constant time.
func SecureCompare(given, expected string) bool {
	if given == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}
