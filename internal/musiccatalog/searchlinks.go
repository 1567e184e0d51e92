package musiccatalog

import (
	"net/url"
	"strings"
)

// YouTubeSearchURL builds a YouTube search link for a song.
func YouTubeSearchURL(title, artist string) string {
	return "https://www.youtube.com/results?search_query=" + searchQuery(title, artist)
}

// SoundCloudSearchURL builds a SoundCloud search link for a song.
func SoundCloudSearchURL(title, artist string) string {
	return "https://soundcloud.com/search?q=" + searchQuery(title, artist)
}

func searchQuery(title, artist string) string {
	return url.QueryEscape(strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(artist)))
}
