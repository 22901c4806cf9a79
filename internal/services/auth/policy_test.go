package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
)

func testPublisher(domain string, whitelist []string) *models.Publisher {
	return &models.Publisher{
		ID:     "pub_test",
		Domain: domain,
		Status: models.PublisherStatusActive,
		Config: models.PublisherConfig{WhitelistedBlogURLs: whitelist},
	}
}

func TestCheckDomain(t *testing.T) {
	policy := NewPolicy(arbor.NewLogger())

	tests := []struct {
		name   string
		url    string
		domain string
		ok     bool
	}{
		{"exact domain", "https://example.com/post", "example.com", true},
		{"subdomain", "https://blog.example.com/post", "example.com", true},
		{"nested subdomain", "https://a.blog.example.com/post", "example.com", true},
		{"other domain", "https://other.com/post", "example.com", false},
		{"suffix but not subdomain", "https://badexample.com/post", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.CheckDomain(tt.url, testPublisher(tt.domain, nil))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, common.CodeDomainMismatch, common.CodeOf(err))
				assert.Equal(t, common.KindAuth, common.KindOf(err))
			}
		})
	}
}

func TestCheckWhitelist_EmptyAcceptsAll(t *testing.T) {
	policy := NewPolicy(arbor.NewLogger())
	publisher := testPublisher("example.com", nil)

	assert.NoError(t, policy.CheckWhitelist("https://example.com/anything/at/all", publisher))
}

func TestCheckWhitelist_Patterns(t *testing.T) {
	policy := NewPolicy(arbor.NewLogger())

	tests := []struct {
		name     string
		patterns []string
		url      string
		ok       bool
	}{
		{
			"wildcard crosses path separators",
			[]string{"https://example.com/blog/*"},
			"https://example.com/blog/2026/03/post",
			true,
		},
		{
			"anchored match rejects prefix overlap",
			[]string{"https://example.com/blog/*"},
			"https://example.com/blogroll/post",
			false,
		},
		{
			"exact pattern",
			[]string{"https://example.com/about"},
			"https://example.com/about",
			true,
		},
		{
			"exact pattern rejects longer path",
			[]string{"https://example.com/about"},
			"https://example.com/about/team",
			false,
		},
		{
			"host match is case-insensitive",
			[]string{"https://Example.COM/blog/*"},
			"https://example.com/blog/post",
			true,
		},
		{
			"path match is case-sensitive",
			[]string{"https://example.com/Blog/*"},
			"https://example.com/blog/post",
			false,
		},
		{
			"second pattern matches",
			[]string{"https://example.com/news/*", "https://example.com/blog/*"},
			"https://example.com/blog/post",
			true,
		},
		{
			"invalid pattern is skipped",
			[]string{"https://example.com/[", "https://example.com/blog/*"},
			"https://example.com/blog/post",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := testPublisher("example.com", tt.patterns)
			err := policy.CheckWhitelist(tt.url, publisher)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, common.CodeNotWhitelisted, common.CodeOf(err))
			}
		})
	}
}

func TestCheckActive(t *testing.T) {
	policy := NewPolicy(arbor.NewLogger())

	for _, status := range []models.PublisherStatus{models.PublisherStatusActive, models.PublisherStatusTrial} {
		publisher := testPublisher("example.com", nil)
		publisher.Status = status
		assert.NoError(t, policy.CheckActive(publisher), "status %s should pass", status)
	}

	inactive := testPublisher("example.com", nil)
	inactive.Status = models.PublisherStatusInactive
	err := policy.CheckActive(inactive)
	require.Error(t, err)
	assert.Equal(t, common.KindAuth, common.KindOf(err))
}
