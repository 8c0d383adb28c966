package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestMediaStoreSaveImage(t *testing.T) {
	store := NewMediaStore(t.TempDir(), "/media")

	name, err := store.SaveImageFrom(bytes.NewReader(pngHeader), "doctors")
	if err != nil {
		t.Fatalf("SaveImageFrom failed: %v", err)
	}
	if !strings.HasPrefix(name, "doctors/") || !strings.HasSuffix(name, ".png") {
		t.Errorf("unexpected stored name %q", name)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(name))); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
	if got := store.URL(name); got != "/media/"+name {
		t.Errorf("URL() = %q", got)
	}

	if err := store.Delete(name); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(name); err != nil {
		t.Errorf("Delete of a missing file should succeed, got %v", err)
	}
}

func TestMediaStoreRejects(t *testing.T) {
	store := NewMediaStore(t.TempDir(), "/media/")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"plain text", []byte("definitely not an image"), ErrUnsupportedImage},
		{"pdf", []byte("%PDF-1.4\n%âãÏÓ\n"), ErrUnsupportedImage},
		{"too large", append(append([]byte{}, pngHeader...), make([]byte, MaxImageSize)...), ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SaveImageFrom(bytes.NewReader(tt.data), "doctors")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+7 (912) 345-67-89", true},
		{"89123456789", true},
		{"+0123", false},
		{"phone", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidatePhone(tt.phone); got != tt.want {
			t.Errorf("ValidatePhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}
