package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDetails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    map[string]any
		expected map[string]any
	}{
		{
			name:     "nil map",
			input:    nil,
			expected: nil,
		},
		{
			name:     "no sensitive keys",
			input:    map[string]any{"url": "https://example.com", "count": 3},
			expected: map[string]any{"url": "https://example.com", "count": 3},
		},
		{
			name:     "token redacted",
			input:    map[string]any{"access_token": "abc123", "status": "ok"},
			expected: map[string]any{"access_token": Redacted, "status": "ok"},
		},
		{
			name:     "case insensitive match",
			input:    map[string]any{"ApiKey": "xyz", "Authorization": "Bearer foo"},
			expected: map[string]any{"ApiKey": Redacted, "Authorization": Redacted},
		},
		{
			name: "nested map sanitized",
			input: map[string]any{
				"request": map[string]any{
					"cookie": "sessionid=1",
					"path":   "/p/abc",
				},
			},
			expected: map[string]any{
				"request": map[string]any{
					"cookie": Redacted,
					"path":   "/p/abc",
				},
			},
		},
		{
			name:     "substring match on key",
			input:    map[string]any{"refresh_token_expiry": "soon"},
			expected: map[string]any{"refresh_token_expiry": Redacted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, SanitizeDetails(tt.input))
		})
	}
}

func TestSanitizeDetailsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	input := map[string]any{"token": "secret-value"}
	_ = SanitizeDetails(input)
	assert.Equal(t, "secret-value", input["token"])
}

func TestMaskValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abcd", MaskValue("abcd"))
	assert.Equal(t, "••••efgh", MaskValue("abcdefgh"))
	assert.Equal(t, "", MaskValue(""))
}

func TestMaskKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "sr_1****beef", MaskKey("sr_1234567890deadbeef"))
}

func TestIsSensitiveKey(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSensitiveKey("client_secret"))
	assert.True(t, IsSensitiveKey("X-CSRF-Token"))
	assert.False(t, IsSensitiveKey("title"))
	assert.False(t, IsSensitiveKey("artist"))
}
