// Package avatar stores profile pictures on the local filesystem.
package avatar

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MaxSize   = 5 << 20
	URLPrefix = "/uploads/avatars/"
)

var (
	ErrTooLarge        = errors.New("file size too large, maximum size is 5MB")
	ErrUnsupportedType = errors.New("invalid file type, only JPEG, PNG, GIF and WebP are allowed")
	ErrEmpty           = errors.New("no file uploaded")
)

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Store struct {
	dir string
}

// NewStore keeps files under <uploadDir>/avatars.
func NewStore(uploadDir string) (*Store, error) {
	dir := filepath.Join(uploadDir, "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save sniffs the image type from content, writes it under a name derived
// from the owner and the bytes, and returns its public URL.
func (s *Store) Save(ownerID string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	ext, ok := allowed[mt.String()]
	if !ok {
		return "", ErrUnsupportedType
	}

	sum := sha256.New()
	sum.Write([]byte(ownerID))
	sum.Write(data)
	name := hex.EncodeToString(sum.Sum(nil))[:40] + ext

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod avatar: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return URLPrefix + name, nil
}

// Remove deletes the file behind url. URLs outside URLPrefix are ignored.
func (s *Store) Remove(url string) error {
	if !strings.HasPrefix(url, URLPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(url, URLPrefix))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
