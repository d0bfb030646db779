package media

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// twitterMaxMedia caps how many items a single tweet may resolve to.
const twitterMaxMedia = 10

// TwitterProvider resolves twitter.com / x.com post URLs through an external
// parser service.
type TwitterProvider struct {
	parser *parserClient
}

// NewTwitterProvider creates a twitter provider. An empty endpoint leaves the
// provider unconfigured; FetchMedia reports that as a configuration error.
func NewTwitterProvider(endpoint, apiKey string, timeout time.Duration) *TwitterProvider {
	return &TwitterProvider{parser: newParserClient(endpoint, apiKey, timeout)}
}

func (t *TwitterProvider) Name() string { return "twitter" }

func (t *TwitterProvider) CanHandle(url string) bool {
	normalized := strings.ToLower(strings.TrimSpace(url))
	return strings.Contains(normalized, "twitter.com") ||
		strings.Contains(normalized, "x.com")
}

func (t *TwitterProvider) FetchMedia(ctx context.Context, url string) ([]RemoteMedia, error) {
	if t.parser.endpoint == "" {
		return nil, fmt.Errorf("twitter: %w", ErrNotConfigured)
	}
	return t.parser.fetch(ctx, url)
}

func (t *TwitterProvider) MaxMediaCount() int { return twitterMaxMedia }

func (t *TwitterProvider) Referer() string { return "https://x.com/" }
