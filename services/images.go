package services

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

const maxImageSize = 10 * 1024 * 1024

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// checkImage validates an upload and returns the extension to store it under.
func checkImage(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return "", invalid("image", "required", "This field is required")
	}
	if fileHeader.Size > maxImageSize {
		return "", invalid("image", "max", "File too large (max 10MB)")
	}
	contentType := strings.ToLower(fileHeader.Header.Get("Content-Type"))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", invalid("image", "content_type", "Unsupported image type (jpeg, png, webp or gif)")
	}
	if orig := strings.ToLower(filepath.Ext(fileHeader.Filename)); orig == ".jpeg" || orig == ext {
		return orig, nil
	}
	return ext, nil
}
