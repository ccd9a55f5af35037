package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// Storage keeps the bucket as a flat directory. Object names map to file names.
type Storage struct {
	basePath string
}

var _ ports.ObjectStorage = (*Storage)(nil)

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) List(_ context.Context, prefix string, opts domain.ListOptions) ([]domain.StoredObject, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	objects := make([]domain.StoredObject, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		size := info.Size()
		objects = append(objects, domain.StoredObject{
			Name:      entry.Name(),
			Size:      &size,
			UpdatedAt: info.ModTime().UTC(),
		})
	}

	sortObjects(objects, opts.SortBy)
	if opts.Limit > 0 && len(objects) > opts.Limit {
		objects = objects[:opts.Limit]
	}
	return objects, nil
}

func (s *Storage) Upload(_ context.Context, objectName string, body io.Reader, opts domain.UploadOptions) (domain.UploadedObject, error) {
	path, err := s.resolve(objectName)
	if err != nil {
		return domain.UploadedObject{}, err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Upsert {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return domain.UploadedObject{}, domain.WrapError(domain.ErrInvalidInput, "upload object", fmt.Errorf("%s already exists", objectName))
	}
	if err != nil {
		return domain.UploadedObject{}, fmt.Errorf("create file: %w", err)
	}

	_, err = io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Partial objects must never be listed.
		_ = os.Remove(path)
		return domain.UploadedObject{}, fmt.Errorf("write file: %w", err)
	}
	return domain.UploadedObject{Path: objectName}, nil
}

func (s *Storage) PublicURL(objectName string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.basePath, objectName))}).String()
}

func (s *Storage) resolve(objectName string) (string, error) {
	if objectName == "" || objectName != filepath.Base(objectName) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve object", fmt.Errorf("invalid object name %q", objectName))
	}
	return filepath.Join(s.basePath, objectName), nil
}

func sortObjects(objects []domain.StoredObject, by domain.SortBy) {
	cmp := func(a, b domain.StoredObject) int {
		switch by.Column {
		case "updated_at", "created_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return strings.Compare(a.Name, b.Name)
		}
	}
	slices.SortStableFunc(objects, func(a, b domain.StoredObject) int {
		if by.Order == domain.SortDesc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
}
