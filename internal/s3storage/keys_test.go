package s3storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyExtension(t *testing.T) {
	tests := []struct {
		name     string
		original string
		wantExt  string
	}{
		{"jpeg kept", "storefront.JPG", ".jpg"},
		{"png kept", "logo.png", ".png"},
		{"missing extension", "photo", ".jpg"},
		{"empty name", "", ".jpg"},
		{"dot only", "weird.", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ObjectKey(tt.original)
			assert.True(t, strings.HasSuffix(key, tt.wantExt), "key %q should end with %q", key, tt.wantExt)
			assert.False(t, strings.Contains(key, "/"))
		})
	}
}

func TestObjectKeyUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		key := ObjectKey("same-name.jpg")
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %q", key)
		seen[key] = struct{}{}
	}
}
