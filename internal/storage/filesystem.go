package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FileSystem stores proxied image bytes on disk, keyed by source URL and
// requested width. Files live at {baseDir}/{hash[:2]}/{hash}_{width}.
// Width 0 means the original bytes.
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating thumbnail directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

func urlHash(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// ImagePath returns the filesystem path for an image at a given width.
func (fs *FileSystem) ImagePath(sourceURL string, width int) string {
	h := urlHash(sourceURL)
	return filepath.Join(fs.baseDir, h[:2], h+"_"+strconv.Itoa(width))
}

// Read returns stored bytes, or ErrNotFound.
func (fs *FileSystem) Read(sourceURL string, width int) ([]byte, error) {
	data, err := os.ReadFile(fs.ImagePath(sourceURL, width))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading stored image: %w", err)
	}
	return data, nil
}

// Write saves image bytes, creating the shard directory if needed.
func (fs *FileSystem) Write(sourceURL string, width int, data []byte) error {
	path := fs.ImagePath(sourceURL, width)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}

	// write-then-rename so a concurrent reader never sees a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing stored image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing stored image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storing image: %w", err)
	}
	return nil
}

// Exists checks if an image at the given width is on disk.
func (fs *FileSystem) Exists(sourceURL string, width int) bool {
	_, err := os.Stat(fs.ImagePath(sourceURL, width))
	return err == nil
}

// Purge removes every stored image and returns how many files were deleted.
func (fs *FileSystem) Purge() (int, error) {
	shards, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return 0, fmt.Errorf("listing thumbnail directory: %w", err)
	}

	removed := 0
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		dir := filepath.Join(fs.baseDir, shard.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("listing shard %s: %w", shard.Name(), err)
		}
		removed += len(files)
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("removing shard %s: %w", shard.Name(), err)
		}
	}
	return removed, nil
}
