package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// parserClient calls an external parser service that resolves a post URL into
// media locations. Scraping lives entirely behind that service; this client
// only speaks its small JSON contract.
type parserClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type parserRequest struct {
	URL string `json:"url"`
}

type parserResponse struct {
	Media []struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	} `json:"media"`
}

func newParserClient(endpoint, apiKey string, timeout time.Duration) *parserClient {
	return &parserClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// fetch asks the parser service for the post's media list. Error text from
// the parser is passed through verbatim; the fetch pipeline matches it
// against the transient-failure vocabulary to decide on retries.
func (p *parserClient) fetch(ctx context.Context, postURL string) ([]RemoteMedia, error) {
	body, err := json.Marshal(parserRequest{URL: postURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode parser request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build parser request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("parser returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed parserResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode parser response: %w", err)
	}

	if len(parsed.Media) == 0 {
		return nil, ErrNoMedia
	}

	media := make([]RemoteMedia, 0, len(parsed.Media))
	for _, m := range parsed.Media {
		kind := KindImage
		if strings.EqualFold(m.Type, string(KindVideo)) {
			kind = KindVideo
		}
		media = append(media, RemoteMedia{URL: m.URL, Kind: kind})
	}
	return media, nil
}
