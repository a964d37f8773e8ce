package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"important", CategoryImportant, false},
		{"Solicitation", CategorySolicitation, false},
		{"  NEWSLETTER  ", CategoryNewsletter, false},
		{"transactional", CategoryTransactional, false},
		{"normal", CategoryNormal, false},
		{"spam", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestCategoryRankOrder(t *testing.T) {
	assert.Less(t, CategoryImportant.Rank(), CategorySolicitation.Rank())
	assert.Less(t, CategorySolicitation.Rank(), CategoryNewsletter.Rank())
	assert.Less(t, CategoryNewsletter.Rank(), CategoryTransactional.Rank())
	assert.Less(t, CategoryTransactional.Rank(), CategoryNormal.Rank())
	assert.Equal(t, len(Categories), Category("junk").Rank())
}

func TestEmailInputDomain(t *testing.T) {
	tests := []struct {
		name  string
		email EmailInput
		want  string
	}{
		{
			name:  "derived from sender",
			email: EmailInput{Sender: "who@Example.COM"},
			want:  "example.com",
		},
		{
			name:  "explicit domain wins",
			email: EmailInput{Sender: "who@example.com", SenderDomain: "Other.ORG"},
			want:  "other.org",
		},
		{
			name:  "malformed address",
			email: EmailInput{Sender: "not-an-address"},
			want:  "",
		},
		{
			name:  "double at sign",
			email: EmailInput{Sender: "a@b@c"},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.email.Domain())
		})
	}
}

func TestCachedClassificationExpired(t *testing.T) {
	now := time.Now()
	entry := CachedClassification{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, entry.Expired(now))
	assert.True(t, entry.Expired(now.Add(2*time.Hour)))
}
