package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps uploads on disk under Dir and serves them from BaseURL.
// The server mounts Dir as a static route at BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: baseURL}, nil
}

func (s *LocalStore) Upload(_ context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	destPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := saveFile(fileHeader, destPath); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", key, err)
	}
	return publicURL(s.BaseURL, key), nil
}

// Delete removes the stored file. A missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	destPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(destPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// path resolves key inside Dir and rejects keys that escape it.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.Dir, clean), nil
}

func saveFile(fileHeader *multipart.FileHeader, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}
