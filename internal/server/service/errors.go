package service

import "errors"

// Sentinel errors for the service layer. The API layer maps these onto HTTP
// statuses in one place.
var (
	ErrInvalidInput          = errors.New("invalid URL provided")
	ErrUnsupportedURL        = errors.New("unsupported URL")
	ErrNoMedia               = errors.New("no images or videos found in this post")
	ErrTooManyMedia          = errors.New("too many media files")
	ErrFileTooLarge          = errors.New("file size exceeds maximum limit")
	ErrDownloadTimeout       = errors.New("download timeout")
	ErrProviderNotConfigured = errors.New("parser service is not configured")
	ErrProviderUnavailable   = errors.New("provider is not available yet")
	ErrAssetNotFound         = errors.New("asset file not found")
	ErrBadReference          = errors.New("invalid asset reference")
	ErrInvalidSession        = errors.New("invalid session ID")
	ErrInvalidFilename       = errors.New("invalid filename")
	ErrNoAssets              = errors.New("no assets provided")
)
