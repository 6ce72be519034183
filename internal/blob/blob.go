// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package blob stores media, audio, subtitle and thumbnail objects.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store is the object-store collaborator.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PutFile(ctx context.Context, key, srcPath, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Download copies an object to a local file, creating or truncating it.
	Download(ctx context.Context, key, destPath string) error
	Delete(ctx context.Context, key string) error
	// URL returns a reference that external services can fetch the object from.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ValidateKey rejects absolute, empty or escaping keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Content types used by the pipeline.
const (
	ContentTypeMP4  = "video/mp4"
	ContentTypeWAV  = "audio/wav"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeVTT  = "text/vtt"
)

// AudioKey is where the extracted audio track of a video lives.
func AudioKey(videoID int64) string { return fmt.Sprintf("audio/%d.wav", videoID) }

// VideoThumbnailKey is the poster frame of a video.
func VideoThumbnailKey(videoID int64) string { return fmt.Sprintf("thumbnails/%d.jpg", videoID) }

// SubtitleKey is one language's subtitle file of a video.
func SubtitleKey(videoID int64, lang string) string {
	return fmt.Sprintf("subtitles/%d/%s.vtt", videoID, lang)
}

// ClipKey is the cut media of a clip.
func ClipKey(clipID int64) string { return fmt.Sprintf("clips/%d.mp4", clipID) }

// ClipThumbnailKey is the poster frame of a clip.
func ClipThumbnailKey(clipID int64) string { return fmt.Sprintf("thumbnails/clip_%d.jpg", clipID) }

// ClipSubtitleKey is the re-timed subtitle of a clip.
func ClipSubtitleKey(clipID int64) string { return fmt.Sprintf("clips/subtitles/%d.vtt", clipID) }
