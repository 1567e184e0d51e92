package entry

import (
	"net/url"
	"strings"
)

// Platform identifies the social network a post URL belongs to.
type Platform string

const (
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformYouTube    Platform = "youtube"
	PlatformTwitter    Platform = "twitter"
	PlatformThreads    Platform = "threads"
	PlatformFacebook   Platform = "facebook"
	PlatformReddit     Platform = "reddit"
	PlatformPinterest  Platform = "pinterest"
	PlatformSnapchat   Platform = "snapchat"
	PlatformLinkedIn   Platform = "linkedin"
	PlatformTwitch     Platform = "twitch"
	PlatformVimeo      Platform = "vimeo"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformSpotify    Platform = "spotify"
	PlatformOther      Platform = "other"
)

type platformInfo struct {
	label  string
	hosts  []string
	oembed string
}

// platformTable drives detection, display labels and oEmbed lookups. Hosts
// match the URL hostname or any of its parent domains.
var platformTable = map[Platform]platformInfo{
	PlatformInstagram: {
		label: "Instagram",
		hosts: []string{"instagram.com", "instagr.am"},
		// Instagram's oEmbed endpoint requires an app token, the cascade
		// skips straight to scraping for this platform.
	},
	PlatformTikTok: {
		label:  "TikTok",
		hosts:  []string{"tiktok.com"},
		oembed: "https://www.tiktok.com/oembed",
	},
	PlatformYouTube: {
		label:  "YouTube",
		hosts:  []string{"youtube.com", "youtu.be"},
		oembed: "https://www.youtube.com/oembed",
	},
	PlatformTwitter: {
		label:  "X",
		hosts:  []string{"twitter.com", "x.com"},
		oembed: "https://publish.twitter.com/oembed",
	},
	PlatformThreads: {
		label: "Threads",
		hosts: []string{"threads.net", "threads.com"},
	},
	PlatformFacebook: {
		label: "Facebook",
		hosts: []string{"facebook.com", "fb.watch", "fb.com"},
	},
	PlatformReddit: {
		label: "Reddit",
		hosts: []string{"reddit.com", "redd.it"},
	},
	PlatformPinterest: {
		label: "Pinterest",
		hosts: []string{"pinterest.com", "pin.it"},
	},
	PlatformSnapchat: {
		label: "Snapchat",
		hosts: []string{"snapchat.com"},
	},
	PlatformLinkedIn: {
		label: "LinkedIn",
		hosts: []string{"linkedin.com"},
	},
	PlatformTwitch: {
		label: "Twitch",
		hosts: []string{"twitch.tv"},
	},
	PlatformVimeo: {
		label:  "Vimeo",
		hosts:  []string{"vimeo.com"},
		oembed: "https://vimeo.com/api/oembed.json",
	},
	PlatformSoundCloud: {
		label:  "SoundCloud",
		hosts:  []string{"soundcloud.com"},
		oembed: "https://soundcloud.com/oembed",
	},
	PlatformSpotify: {
		label:  "Spotify",
		hosts:  []string{"open.spotify.com", "spotify.com"},
		oembed: "https://open.spotify.com/oembed",
	},
	PlatformOther: {
		label: "Other",
	},
}

// DetectPlatform maps a post URL to its platform. Unknown hosts and
// unparsable URLs map to PlatformOther.
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return PlatformOther
	}
	host := strings.ToLower(u.Hostname())

	for platform, info := range platformTable {
		for _, candidate := range info.hosts {
			if host == candidate || strings.HasSuffix(host, "."+candidate) {
				return platform
			}
		}
	}
	return PlatformOther
}

// Label returns the platform's display name.
func (p Platform) Label() string {
	if info, ok := platformTable[p]; ok && info.label != "" {
		return info.label
	}
	return string(p)
}

// OEmbedEndpoint returns the platform's public oEmbed endpoint, if it has
// one usable without authentication.
func (p Platform) OEmbedEndpoint() (string, bool) {
	info, ok := platformTable[p]
	if !ok || info.oembed == "" {
		return "", false
	}
	return info.oembed, true
}

// NormalizeURL canonicalizes a post URL for use as the idempotency key:
// lowercased scheme and host, tracking query parameters and fragments
// dropped, trailing slash removed.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	switch lower {
	case "igsh", "igshid", "fbclid", "gclid", "si", "ref", "ref_src", "mibextid":
		return true
	}
	return false
}
