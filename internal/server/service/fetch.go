package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"snapfetch/internal/media"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// transientPhrases is the vocabulary of upstream failures worth retrying:
// rate limiting, anti-automation walls, and generic transient error pages.
// Anything else propagates immediately.
var transientPhrases = []string{
	"anti-bot protection",
	"error page",
	"Something went wrong",
	"Try again",
	"blocking automated access",
}

func isTransient(err error) bool {
	msg := err.Error()
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// fetchMedia runs the full pipeline for one submission: provider invocation
// with retry, cardinality check, and concurrent per-asset downloads into the
// session directory. All-or-nothing: any asset failure fails the submission.
func (s *MediaService) fetchMedia(ctx context.Context, provider media.Provider, url, sessionID string) ([]Asset, error) {
	list, err := s.invokeProvider(ctx, provider, url)
	if err != nil {
		return nil, err
	}

	if max := provider.MaxMediaCount(); max > 0 && len(list) > max {
		return nil, fmt.Errorf("%w (max %d). Found %d", ErrTooManyMedia, max, len(list))
	}

	assets := make([]Asset, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range list {
		i, item := i, item
		g.Go(func() error {
			asset, err := s.downloadOne(gctx, provider, item, sessionID)
			if err != nil {
				return fmt.Errorf("failed to download %s: %w", item.Kind, err)
			}
			assets[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assets, nil
}

// invokeProvider calls the provider with exponential backoff on transient
// failures: delay doubles from the initial value with ±20% jitter so
// concurrent callers don't resynchronize, capped at MaxRetries additional
// attempts. The last error propagates once retries are exhausted.
func (s *MediaService) invokeProvider(ctx context.Context, provider media.Provider, url string) ([]media.RemoteMedia, error) {
	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries),
		retry.WithJitterPercent(20,
			retry.NewExponential(s.cfg.RetryInitialDelay)))

	var list []media.RemoteMedia
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var ferr error
		list, ferr = provider.FetchMedia(ctx, url)
		if ferr != nil {
			if isTransient(ferr) {
				slog.Warn("transient provider failure, will retry",
					"provider", provider.Name(),
					"error", ferr,
				)
				return retry.RetryableError(ferr)
			}
			return ferr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// downloadOne fetches a single remote asset and stages it. The download has
// a hard timeout, a size cap enforced before any bytes hit disk, and a
// content-type default keyed by media kind.
func (s *MediaService) downloadOne(ctx context.Context, provider media.Provider, item media.RemoteMedia, sessionID string) (Asset, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("invalid media URL: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	if ref := provider.Referer(); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if dctx.Err() == context.DeadlineExceeded {
			return Asset{}, ErrDownloadTimeout
		}
		return Asset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Asset{}, fmt.Errorf("failed to download media: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		if item.Kind == media.KindImage {
			contentType = "image/jpeg"
		} else {
			contentType = "video/mp4"
		}
	}

	body, err := s.readCapped(resp.Body)
	if err != nil {
		if dctx.Err() == context.DeadlineExceeded {
			return Asset{}, ErrDownloadTimeout
		}
		return Asset{}, err
	}

	filename := generateFilename(contentType, item.URL)
	if _, err := s.dirs.Stage(sessionID, filename, bytes.NewReader(body)); err != nil {
		return Asset{}, fmt.Errorf("failed to stage media: %w", err)
	}

	return Asset{
		ID:          uuid.NewString(),
		SourceURL:   item.URL,
		DownloadURL: downloadPath(filename, sessionID),
		ContentType: contentType,
		Filename:    filename,
		Provider:    provider.Name(),
		Kind:        item.Kind,
	}, nil
}

// readCapped reads the whole payload, rejecting anything over the size cap
// before a single byte is written to disk.
func (s *MediaService) readCapped(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media payload: %w", err)
	}
	if int64(len(body)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w of %dMB", ErrFileTooLarge, s.cfg.MaxFileSize/1024/1024)
	}
	return body, nil
}

var extPattern = regexp.MustCompile(`\.(\w+)$`)

var extByContentType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
}

// generateFilename builds a collision-resistant staged filename: timestamp
// plus a short random token, with an extension taken from the suggested name
// when it has one, else inferred from the content type.
func generateFilename(contentType, suggestedName string) string {
	ext := ".bin"

	if suggestedName != "" {
		if m := extPattern.FindStringSubmatch(suggestedName); m != nil {
			ext = "." + m[1]
		}
	}

	if ext == ".bin" {
		if mapped, ok := extByContentType[strings.ToLower(contentType)]; ok {
			ext = mapped
		}
	}

	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}
