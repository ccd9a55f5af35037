package domain

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const (
	MaxSources     = 20
	PDFContentType = "application/pdf"
	UnknownSize    = "Unknown size"
)

var timestampPrefix = regexp.MustCompile(`^\d+-`)

// File is an opaque handle to document bytes. Open returns a fresh reader on each call.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`

	opener func() (io.ReadCloser, error)
}

func NewFile(name, contentType string, size int64, opener func() (io.ReadCloser, error)) File {
	return File{Name: name, ContentType: contentType, Size: size, opener: opener}
}

func NewBytesFile(name, contentType string, data []byte) File {
	return NewFile(name, contentType, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// PlaceholderPDF stands in for a document that only exists in remote storage.
func PlaceholderPDF(name string) File {
	return NewBytesFile(name, PDFContentType, nil)
}

func (f File) Open() (io.ReadCloser, error) {
	if f.opener == nil {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return f.opener()
}

func (f File) IsPDF() bool {
	return f.ContentType == PDFContentType
}

type Source struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	ObjectName string `json:"object_name,omitempty"`
	File       File   `json:"-"`
}

func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

// DisplayName strips the upload timestamp prefix from a stored object name.
func DisplayName(objectName string) string {
	return timestampPrefix.ReplaceAllString(objectName, "")
}

func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

type StoredObject struct {
	Name      string    `json:"name"`
	Size      *int64    `json:"size,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type SortBy struct {
	Column string    `json:"column"`
	Order  SortOrder `json:"order"`
}

type ListOptions struct {
	Limit  int    `json:"limit"`
	SortBy SortBy `json:"sortBy"`
}

type UploadOptions struct {
	Upsert      bool
	ContentType string
}

type UploadedObject struct {
	Path string `json:"path"`
}

type UploadStatus string

const (
	UploadIdle      UploadStatus = "idle"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadError     UploadStatus = "error"
)

// UploadBatchResult aggregates one orchestrator invocation.
// Every eligible file lands in exactly one of Succeeded or FailedCount.
type UploadBatchResult struct {
	Succeeded   []Source `json:"succeeded"`
	FailedCount int      `json:"failed_count"`
	Eligible    int      `json:"eligible"`
	Skipped     int      `json:"skipped"`
	Paths       []string `json:"paths,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func (r UploadBatchResult) Status() UploadStatus {
	switch {
	case len(r.Succeeded) > 0:
		return UploadSuccess
	case r.FailedCount > 0:
		return UploadError
	default:
		return UploadIdle
	}
}

type DocumentsUploadedEvent struct {
	Paths      []string  `json:"paths"`
	UploadedAt time.Time `json:"uploaded_at"`
}
