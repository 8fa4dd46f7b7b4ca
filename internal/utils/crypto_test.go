// internal/utils/crypto_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLicenseKeyShape(t *testing.T) {
	key, err := GenerateLicenseKey()
	require.NoError(t, err)

	assert.Len(t, key, 36)
	assert.True(t, IsLicenseKeyFormat(key), "unexpected key %q", key)

	groups := strings.Split(key, "-")
	require.Len(t, groups, 5)
	for i, n := range []int{8, 4, 4, 4, 12} {
		assert.Len(t, groups[i], n)
	}
	for _, r := range strings.ReplaceAll(key, "-", "") {
		assert.Contains(t, licenseKeyCharset, string(r))
	}
}

func TestGenerateLicenseKeyUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		key, err := GenerateLicenseKey()
		require.NoError(t, err)
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %s", key)
		seen[key] = struct{}{}
	}
}

func TestIsLicenseKeyFormat(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"ABCDEFGH-1234-ABCD-1234-ABCDEFGHIJKL", true},
		{"abcdefgh-1234-abcd-1234-abcdefghijkl", false},
		{"ABCDEFGH-1234-ABCD-1234-ABCDEFGHIJK", false},
		{"ABCDEFGH1234ABCD1234ABCDEFGHIJKL", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLicenseKeyFormat(tt.key), tt.key)
	}
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("s3cret", "s3cret"))
	assert.False(t, SecureCompare("s3cret", "s3cre"))
	assert.False(t, SecureCompare("", ""))
	assert.False(t, SecureCompare("x", ""))
}
