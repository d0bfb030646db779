package media

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InstagramProvider resolves instagram.com post and reel URLs through an
// external parser service. Instagram carousels have no practical item cap.
type InstagramProvider struct {
	parser *parserClient
}

// NewInstagramProvider creates an instagram provider.
func NewInstagramProvider(endpoint, apiKey string, timeout time.Duration) *InstagramProvider {
	return &InstagramProvider{parser: newParserClient(endpoint, apiKey, timeout)}
}

func (i *InstagramProvider) Name() string { return "instagram" }

func (i *InstagramProvider) CanHandle(url string) bool {
	normalized := strings.ToLower(strings.TrimSpace(url))
	return strings.Contains(normalized, "instagram.com")
}

func (i *InstagramProvider) FetchMedia(ctx context.Context, url string) ([]RemoteMedia, error) {
	if i.parser.endpoint == "" {
		return nil, fmt.Errorf("instagram: %w", ErrNotConfigured)
	}
	return i.parser.fetch(ctx, url)
}

func (i *InstagramProvider) MaxMediaCount() int { return 0 }

func (i *InstagramProvider) Referer() string { return "https://www.instagram.com/" }
