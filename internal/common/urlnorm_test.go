package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"adds https scheme", "example.com/post", "https://example.com/post"},
		{"lowercases host", "https://Example.COM/Post", "https://example.com/Post"},
		{"strips www prefix", "https://www.example.com/post", "https://example.com/post"},
		{"strips trailing slash", "https://example.com/post/", "https://example.com/post"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"preserves query", "https://example.com/post?a=1&b=2", "https://example.com/post?a=1&b=2"},
		{"preserves path case", "https://example.com/Blog/My-Post", "https://example.com/Blog/My-Post"},
		{"keeps http scheme", "http://example.com/post", "http://example.com/post"},
		{"trims whitespace", "  https://example.com/post  ", "https://example.com/post"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizeURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"www.Example.com/Blog/Post/",
		"https://sub.example.com/post?q=1",
		"example.com",
	}
	for _, input := range inputs {
		once, err := NormalizeURL(input)
		require.NoError(t, err)
		twice, err := NormalizeURL(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalization must be idempotent for %q", input)
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "https://"} {
		_, err := NormalizeURL(input)
		require.Error(t, err, "expected error for %q", input)
		assert.Equal(t, KindValidation, KindOf(err))
	}
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("Example.COM"))
	assert.Equal(t, "example.com", NormalizeDomain("www.example.com"))
	assert.Equal(t, "example.com", NormalizeDomain("example.com:8080"))
	assert.Equal(t, "example.com", NormalizeDomain(" example.com "))
	assert.Equal(t, "blog.example.com", NormalizeDomain("blog.example.com"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://example.com/post"))
	assert.Equal(t, "example.com", HostOf("https://www.Example.com:443/post"))
	assert.Equal(t, "", HostOf("not a url at all :"))
}

func TestIsSameOrSubdomain(t *testing.T) {
	assert.True(t, IsSameOrSubdomain("example.com", "example.com"))
	assert.True(t, IsSameOrSubdomain("blog.example.com", "example.com"))
	assert.True(t, IsSameOrSubdomain("a.b.example.com", "example.com"))
	assert.False(t, IsSameOrSubdomain("badexample.com", "example.com"))
	assert.False(t, IsSameOrSubdomain("example.com", "blog.example.com"))
	assert.False(t, IsSameOrSubdomain("", "example.com"))
	assert.False(t, IsSameOrSubdomain("example.com", ""))
}

func TestStartOfUTCDay(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	// 2026-03-15 08:30 AEST is 2026-03-14 22:30 UTC
	local := time.Date(2026, 3, 15, 8, 30, 0, 0, loc)
	start := StartOfUTCDay(local)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.UTC, start.Location())
}
