package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://www.instagram.com/reel/Cxyz123/", PlatformInstagram},
		{"https://instagr.am/p/abc/", PlatformInstagram},
		{"https://www.tiktok.com/@user/video/7123456789", PlatformTikTok},
		{"https://vm.tiktok.com/ZM8abc/", PlatformTikTok},
		{"https://youtu.be/dQw4w9WgXcQ", PlatformYouTube},
		{"https://www.youtube.com/shorts/abc123", PlatformYouTube},
		{"https://x.com/user/status/12345", PlatformTwitter},
		{"https://twitter.com/user/status/12345", PlatformTwitter},
		{"https://fb.watch/abcdef/", PlatformFacebook},
		{"https://www.reddit.com/r/videos/comments/abc/", PlatformReddit},
		{"https://pin.it/abc123", PlatformPinterest},
		{"https://www.snapchat.com/spotlight/abc", PlatformSnapchat},
		{"https://www.linkedin.com/posts/someone_activity-123", PlatformLinkedIn},
		{"https://www.twitch.tv/videos/123456", PlatformTwitch},
		{"https://vimeo.com/123456789", PlatformVimeo},
		{"https://soundcloud.com/artist/track", PlatformSoundCloud},
		{"https://open.spotify.com/track/abc123", PlatformSpotify},
		{"https://www.threads.net/@user/post/Cxyz", PlatformThreads},
		{"https://www.threads.com/@user/post/Cxyz", PlatformThreads},
		{"https://example.com/some/post", PlatformOther},
		{"not a url", PlatformOther},
		{"", PlatformOther},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestDetectPlatformNoSubstringFalsePositive(t *testing.T) {
	t.Parallel()

	// Host must match as a domain suffix, not a substring.
	assert.Equal(t, PlatformOther, DetectPlatform("https://nottiktok.com/video/1"))
	assert.Equal(t, PlatformOther, DetectPlatform("https://tiktok.com.evil.example/video/1"))
}

func TestOEmbedEndpoint(t *testing.T) {
	t.Parallel()

	endpoint, ok := PlatformTikTok.OEmbedEndpoint()
	assert.True(t, ok)
	assert.Equal(t, "https://www.tiktok.com/oembed", endpoint)

	_, ok = PlatformInstagram.OEmbedEndpoint()
	assert.False(t, ok, "instagram oEmbed requires auth and is not used")

	_, ok = PlatformOther.OEmbedEndpoint()
	assert.False(t, ok)
}

func TestPlatformLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TikTok", PlatformTikTok.Label())
	assert.Equal(t, "X", PlatformTwitter.Label())
	assert.Equal(t, "Other", PlatformOther.Label())
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips tracking params",
			input:    "https://www.instagram.com/reel/Cxyz/?igsh=abc123&utm_source=share",
			expected: "https://www.instagram.com/reel/Cxyz",
		},
		{
			name:     "keeps meaningful params",
			input:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:     "lowercases host, drops fragment and trailing slash",
			input:    "HTTPS://WWW.TikTok.com/@User/video/123/#comments",
			expected: "https://www.tiktok.com/@User/video/123",
		},
		{
			name:     "unparsable input returned trimmed",
			input:    "  not a url  ",
			expected: "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}
