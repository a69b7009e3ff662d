package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
)

// PublicPrefix is the URL path under which stored files are served.
const PublicPrefix = "/uploads/"

const maxNameLength = 100

// LocalStorage keeps uploaded assets in a directory on local disk.
// File names are "<ULID>-<sanitised original name>" so they sort by upload time
// and never collide.
type LocalStorage struct {
	dir string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewLocalStorage ensures dir exists and returns a storage rooted there.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStorage{
		dir:     abs,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Dir returns the absolute directory files are written to.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Save writes data to a new file and returns its public path.
// The write goes to a temporary file first and is renamed into place, so a
// reader never observes a partially written asset.
func (s *LocalStorage) Save(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := s.newID() + "-" + sanitizeName(suggestedName)
	target := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("save asset: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("save asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("save asset: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("save asset: %w", err)
	}

	return PublicPrefix + name, nil
}

// Delete removes the file referenced by a path returned from Save. Deleting a
// file that no longer exists is not an error. Paths that do not resolve to a
// plain file name inside the storage directory are refused.
func (s *LocalStorage) Delete(ctx context.Context, publicPath string) error {
	if publicPath == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := path.Base(publicPath)
	if name == "." || name == "/" || name == ".." || !strings.HasPrefix(publicPath, PublicPrefix) ||
		strings.Contains(strings.TrimPrefix(publicPath, PublicPrefix), "/") {
		return fmt.Errorf("delete asset: refusing path %q", publicPath)
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

func (s *LocalStorage) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), s.entropy).String()
}

// sanitizeName keeps letters, digits, dot, dash and underscore from the base
// name of the original file.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "file"
	}
	if len(out) > maxNameLength {
		out = out[len(out)-maxNameLength:]
	}
	return out
}
