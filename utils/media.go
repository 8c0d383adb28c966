package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var (
	ErrUnsupportedImage = errors.New("upload a valid image: jpeg, png, gif or webp")
	ErrImageTooLarge    = fmt.Errorf("image must not exceed %d MiB", MaxImageSize>>20)
)

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// MediaStore keeps uploaded files under root and serves them below baseURL.
type MediaStore struct {
	root    string
	baseURL string
}

func NewMediaStore(root, baseURL string) *MediaStore {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &MediaStore{root: root, baseURL: baseURL}
}

func (m *MediaStore) Root() string {
	return m.root
}

// SaveImage stores an uploaded image in dir and returns its path relative
// to the media root.
func (m *MediaStore) SaveImage(fh *multipart.FileHeader, dir string) (string, error) {
	if fh.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return m.SaveImageFrom(f, dir)
}

// SaveImageFrom sniffs the content of r, rejects anything but the allowed
// image types, and writes it under a random name.
func (m *MediaStore) SaveImageFrom(r io.Reader, dir string) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if n > MaxImageSize {
		return "", ErrImageTooLarge
	}

	mtype := mimetype.Detect(buf.Bytes())
	if !mimetype.EqualsAny(mtype.String(), imageTypes...) {
		return "", ErrUnsupportedImage
	}

	if err := os.MkdirAll(filepath.Join(m.root, dir), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media dir: %w", err)
	}
	name := path.Join(dir, uuid.NewString()+mtype.Extension())
	if err := os.WriteFile(filepath.Join(m.root, filepath.FromSlash(name)), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return name, nil
}

// URL returns the public URL of a stored file, or "" for an empty path.
func (m *MediaStore) URL(name string) string {
	if name == "" {
		return ""
	}
	return m.baseURL + strings.TrimPrefix(name, "/")
}

// Delete removes a stored file. Missing files are not an error.
func (m *MediaStore) Delete(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(m.root, filepath.FromSlash(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}
