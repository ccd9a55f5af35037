package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

const sniffLen = 512

// Load opens a local file as a notebook file handle. The content type is
// sniffed from the leading bytes, falling back to the extension.
func Load(path string) (domain.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.File{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.File{}, domain.WrapError(domain.ErrInvalidInput, "load file", fmt.Errorf("%s is a directory", path))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return domain.File{}, fmt.Errorf("read %s: %w", path, err)
	}

	return domain.NewFile(
		filepath.Base(path),
		DetectContentType(head[:n], path),
		info.Size(),
		func() (io.ReadCloser, error) { return os.Open(path) },
	), nil
}

// LoadAll loads every path, stopping at the first failure.
func LoadAll(paths []string) ([]domain.File, error) {
	out := make([]domain.File, 0, len(paths))
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func DetectContentType(head []byte, name string) string {
	sniffed := http.DetectContentType(head)
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil && mediaType != "application/octet-stream" && mediaType != "text/plain" {
		return mediaType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(sniffed)
	return mediaType
}

// PageCount parses a PDF and returns its page count.
func PageCount(file domain.File) (int, error) {
	if !file.IsPDF() {
		return 0, domain.WrapError(domain.ErrUnsupportedType, "page count", fmt.Errorf("%s is %s", file.Name, file.ContentType))
	}
	rc, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", file.Name, err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", file.Name, err)
	}
	return reader.NumPage(), nil
}
