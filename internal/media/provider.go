package media

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies a media asset.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// RemoteMedia is one media item a provider located in a post.
type RemoteMedia struct {
	URL  string
	Kind Kind
}

// Sentinel errors shared by every provider.
var (
	ErrNoMedia       = errors.New("no media found in post")
	ErrNotConfigured = errors.New("parser endpoint is not configured")
)

// Provider turns a source post URL into a list of remote media locations.
// How the list is produced (scraping, parser services) is the provider's
// business; the fetch pipeline only consumes this contract.
type Provider interface {
	Name() string
	CanHandle(url string) bool
	FetchMedia(ctx context.Context, url string) ([]RemoteMedia, error)

	// MaxMediaCount caps how many items the pipeline accepts from this
	// provider. Zero means no cap.
	MaxMediaCount() int

	// Referer is sent with outbound asset downloads; some CDNs reject
	// requests without it.
	Referer() string
}

// Registry is an ordered set of providers.
type Registry []Provider

// Detect returns the first provider that can handle the URL, or nil.
// Detection is a pure function of the URL; it never fetches anything.
func (r Registry) Detect(url string) Provider {
	for _, p := range r {
		if p.CanHandle(url) {
			return p
		}
	}
	return nil
}

// CleanURL strips query parameters and fragment from a URL and trims
// surrounding whitespace. Share links carry tracking parameters that confuse
// the upstream parsers.
func CleanURL(raw string) string {
	cleaned, _, _ := strings.Cut(raw, "?")
	cleaned, _, _ = strings.Cut(cleaned, "#")
	return strings.TrimSpace(cleaned)
}
