package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystem_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	fs, err := NewFileSystem(tmpDir)
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}

	fakeImage := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	src := "https://images.unsplash.com/photo-1?w=1080"
	if err := fs.Write(src, 320, fakeImage); err != nil {
		t.Fatalf("writing image: %v", err)
	}

	if !fs.Exists(src, 320) {
		t.Error("expected image to exist after write")
	}
	if fs.Exists(src, 0) {
		t.Error("expected other widths to be stored separately")
	}

	data, err := fs.Read(src, 320)
	if err != nil {
		t.Fatalf("reading image: %v", err)
	}
	if !bytes.Equal(data, fakeImage) {
		t.Errorf("expected %x, got %x", fakeImage, data)
	}
}

func TestFileSystem_Read_NotFound(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}

	_, err = fs.Read("https://nope.example/x.jpg", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileSystem_Purge(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}

	for _, src := range []string{"https://a.example/1.jpg", "https://b.example/2.jpg"} {
		for _, w := range []int{0, 200} {
			if err := fs.Write(src, w, []byte("img")); err != nil {
				t.Fatalf("writing %s@%d: %v", src, w, err)
			}
		}
	}

	removed, err := fs.Purge()
	if err != nil {
		t.Fatalf("purging: %v", err)
	}
	if removed != 4 {
		t.Errorf("expected 4 files removed, got %d", removed)
	}
	if fs.Exists("https://a.example/1.jpg", 0) {
		t.Error("expected image to be gone after purge")
	}
}

func TestFileSystem_ImagePath(t *testing.T) {
	fs := &FileSystem{baseDir: "/data/thumbs"}
	path := fs.ImagePath("https://img.example/a.jpg", 200)

	if !strings.HasPrefix(path, "/data/thumbs/") {
		t.Errorf("expected path under base dir, got %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_200") {
		t.Errorf("expected width suffix, got %s", base)
	}
	if filepath.Base(filepath.Dir(path)) != base[:2] {
		t.Errorf("expected shard dir to match hash prefix, got %s", path)
	}
	if path != fs.ImagePath("https://img.example/a.jpg", 200) {
		t.Error("expected path to be deterministic")
	}
}
