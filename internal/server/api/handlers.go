package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"

	"snapfetch/internal/server/service"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the snapfetch API.
type Handler struct {
	svc *service.MediaService
}

// NewHandler creates a new handler with the given service dependency.
func NewHandler(svc *service.MediaService) *Handler {
	return &Handler{svc: svc}
}

type submitRequest struct {
	URL string `json:"url"`
}

type bundleRequest struct {
	Assets    []service.AssetRef `json:"assets"`
	SessionID string             `json:"sessionId"`
}

// HandleSubmit handles POST /api/media.
// Accepts {url}, fetches the post's media into a fresh session, and returns
// the staged assets plus the session ID.
func (h *Handler) HandleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"ok":      false,
			"message": "Invalid URL provided",
		})
	}

	result, err := h.svc.Submit(c.Request().Context(), req.URL, ClientIdentity(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":        true,
		"assets":    result.Assets,
		"sessionId": result.SessionID,
	})
}

// HandleDownloadAll handles POST /api/download-all.
// Bundles the referenced staged assets into one zip and returns its URL.
func (h *Handler) HandleDownloadAll(c echo.Context) error {
	var req bundleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"ok":      false,
			"message": "Invalid request body",
		})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.QueryParam("session")
	}

	result, err := h.svc.BuildArchive(c.Request().Context(), sessionID, req.Assets)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":     true,
		"zipUrl": result.ZipURL,
	})
}

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// HandleDownload handles GET /api/downloads/:filename.
// Serves a staged file; video requests with a Range header get the exact
// requested byte span with a partial-content status.
func (h *Handler) HandleDownload(c echo.Context) error {
	filename := c.Param("filename")
	sessionID := c.QueryParam("session")

	path, info, err := h.svc.OpenAsset(sessionID, filename)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFilename):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid filename"})
		case errors.Is(err, service.ErrInvalidSession):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid session ID"})
		case errors.Is(err, service.ErrAssetNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "File not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to download file"})
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to download file"})
	}
	defer file.Close()

	header := c.Response().Header()
	header.Set("Cache-Control", "public, max-age=3600")

	// Byte ranges only apply to video; iOS players require them for
	// in-browser playback.
	if rangeHeader := c.Request().Header.Get("Range"); rangeHeader != "" && info.Video {
		if start, end, ok := parseRange(rangeHeader, info.Size); ok {
			if start >= info.Size || start > end {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid range"})
			}
			if _, err := file.Seek(start, io.SeekStart); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to download file"})
			}
			span := end - start + 1
			header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size))
			header.Set("Accept-Ranges", "bytes")
			header.Set(echo.HeaderContentLength, strconv.FormatInt(span, 10))
			return c.Stream(http.StatusPartialContent, info.ContentType, io.LimitReader(file, span))
		}
	}

	if info.Video {
		header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
		header.Set("Accept-Ranges", "bytes")
	} else {
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		header.Set("Accept-Ranges", "none")
	}
	header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))

	return c.Stream(http.StatusOK, info.ContentType, file)
}

// parseRange parses a bytes=start-end header against the file size. A header
// that doesn't match the expected shape is ignored (ok=false) and the full
// content is served; an end past EOF is clamped.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}

	end = size - 1
	if m[2] != "" {
		end, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return start, end, true
}

// HandleHealth handles GET /health.
// Reports whether the storage root is reachable.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	storageStatus := "ok"

	if _, err := h.svc.Stats(); err != nil {
		status = "degraded"
		storageStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  status,
		"storage": storageStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate server statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.Stats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"active_sessions":    stats.ActiveSessions,
		"staged_files":       stats.StagedFiles,
		"storage_used_bytes": stats.StorageUsed,
		"storage_used_human": humanizeBytes(stats.StorageUsed),
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnsupportedURL),
		errors.Is(err, service.ErrTooManyMedia),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrBadReference),
		errors.Is(err, service.ErrNoAssets),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrInvalidFilename):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNoMedia),
		errors.Is(err, service.ErrAssetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrProviderUnavailable):
		status = http.StatusNotImplemented
	case errors.Is(err, service.ErrProviderNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrDownloadTimeout):
		status = http.StatusGatewayTimeout
	}

	return c.JSON(status, echo.Map{
		"ok":      false,
		"message": err.Error(),
	})
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
