// Package imagestore keeps per-product image files in a flat directory.
//
// Files are named <product id>.<ext>. Products reference them by the
// relative path image/<product id>.<ext>, which is also the URL path the
// API serves them from.
package imagestore

import (
	"context"
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PathPrefix is prepended to file names in stored product image paths.
const PathPrefix = "image/"

// DefaultContentType is served for every image unless sniffing is enabled.
const DefaultContentType = "image/png"

var (
	// ErrUnsupported is returned for values that are not a base64 data URI
	// of a supported image format.
	ErrUnsupported = errors.New("unsupported image payload")
	// ErrInvalidName is returned for names that are not a single path element.
	ErrInvalidName = errors.New("invalid image name")
	// ErrNotExist is returned when the requested image file is missing.
	ErrNotExist = errors.New("image does not exist")
)

// extensions maps data URI subtypes to file extensions.
var extensions = map[string]string{
	"png":     "png",
	"svg+xml": "svg",
	"jpeg":    "jpg",
}

// ParseDataURI splits a data:image/<format>;base64,<payload> value into the
// file extension and decoded payload.
func ParseDataURI(s string) (ext string, payload []byte, err error) {
	const prefix = "data:image/"
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", nil, ErrUnsupported
	}
	rest := s[len(prefix):]
	format, data, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, ErrUnsupported
	}
	ext, ok = extensions[strings.ToLower(format)]
	if !ok {
		return "", nil, ErrUnsupported
	}

	payload, err = base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return "", nil, errors.Wrap(err, "decode base64 payload")
	}
	return ext, payload, nil
}

// Store writes, reads and removes image files under a single directory.
type Store struct {
	dir    string
	stored metric.Int64Counter
}

// New returns a Store rooted at dir. The directory is created lazily on the
// first write.
func New(dir string, meter metric.Meter) (*Store, error) {
	stored, err := meter.Int64Counter("goods.images.stored",
		metric.WithDescription("Number of product images written to disk"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create images counter")
	}
	return &Store{dir: dir, stored: stored}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save decodes a data URI and writes it as <id>.<ext>, replacing any image
// previously stored for id. It returns the relative path to store on the
// product.
func (s *Store) Save(ctx context.Context, id, dataURI string) (string, error) {
	ext, payload, err := ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}
	if !validName(id) {
		return "", ErrInvalidName
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create image dir")
	}

	name := id + "." + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), payload, 0o644); err != nil {
		return "", errors.Wrapf(err, "write image %s", name)
	}
	// Other formats go only once the new file is in place.
	if _, err := s.removeByID(id, name); err != nil {
		return "", errors.Wrap(err, "remove previous image")
	}

	s.stored.Add(ctx, 1, metric.WithAttributes(attribute.String("format", ext)))
	return PathPrefix + name, nil
}

// Open opens the named image file for reading. Anything but a regular file
// is reported as ErrNotExist.
func (s *Store) Open(name string) (*os.File, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, errors.Wrapf(err, "open image %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "stat image %s", name)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, ErrNotExist
	}
	return f, nil
}

// RemoveByID deletes every file whose name without extension equals id and
// returns the removed names. A missing directory is not an error.
func (s *Store) RemoveByID(id string) ([]string, error) {
	if !validName(id) {
		return nil, ErrInvalidName
	}
	return s.removeByID(id, "")
}

func (s *Store) removeByID(id, keep string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read image dir")
	}

	var (
		removed  []string
		firstErr error
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == keep || strings.TrimSuffix(name, filepath.Ext(name)) != id {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "remove image %s", name)
			}
			continue
		}
		removed = append(removed, name)
	}
	return removed, firstErr
}

// ContentType returns the content type to serve name with. Unless sniff is
// set, every image is served as DefaultContentType.
func ContentType(name string, sniff bool) string {
	if !sniff {
		return DefaultContentType
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".svg":
		return "image/svg+xml"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
