// internal/utils/domain_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "example.com", "example.com"},
		{"case folding", "Example.COM", "example.com"},
		{"https and www", "https://www.example.com/", "example.com"},
		{"http", "http://example.com", "example.com"},
		{"surrounding space", "  www.Example.com  ", "example.com"},
		{"upper scheme", "HTTPS://WWW.EXAMPLE.COM/", "example.com"},
		{"subdomain kept", "https://shop.example.com", "shop.example.com"},
		{"path kept", "example.com/shop", "example.com/shop"},
		{"repeated scheme", "http://http://example.com", "example.com"},
		{"double slash", "example.com//", "example.com"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.in))
		})
	}
}

func TestNormalizeDomainIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.Example.com/",
		"http://https://www.www.a.com//",
		"WWW.a.com / ",
		"a.com",
		"",
	}
	for _, in := range inputs {
		once := NormalizeDomain(in)
		assert.Equal(t, once, NormalizeDomain(once), in)
	}
}
