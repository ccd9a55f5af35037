package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/httpjson"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/resilience"
)

type StorageOptions struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Storage is a client for the Supabase storage REST API scoped to one bucket.
// Requests carry the current identity's access token.
type Storage struct {
	http     *httpjson.Client
	bucket   string
	tokens   ports.TokenSource
	executor *resilience.Executor
}

var _ ports.ObjectStorage = (*Storage)(nil)

func NewStorage(projectURL, apiKey, bucket string, tokens ports.TokenSource, opts StorageOptions) *Storage {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Storage{
		http:     httpjson.New(projectURL, opts.Timeout, http.Header{"apikey": {apiKey}}),
		bucket:   bucket,
		tokens:   tokens,
		executor: opts.Executor,
	}
}

type listRequest struct {
	Prefix string        `json:"prefix"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	SortBy domain.SortBy `json:"sortBy"`
}

type objectEntry struct {
	Name      string     `json:"name"`
	ID        *string    `json:"id"`
	UpdatedAt *time.Time `json:"updated_at"`
	Metadata  *struct {
		Size     *int64 `json:"size"`
		MimeType string `json:"mimetype"`
	} `json:"metadata"`
}

func (s *Storage) List(ctx context.Context, prefix string, opts domain.ListOptions) ([]domain.StoredObject, error) {
	header, err := s.authHeader(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := resilience.Call(ctx, s.executor, "storage.list", httpjson.Classify, func(ctx context.Context) ([]objectEntry, error) {
		var out []objectEntry
		err := s.http.Do(ctx, httpjson.Request{
			Operation: "storage.list",
			Method:    http.MethodPost,
			Path:      "/storage/v1/object/list/" + s.bucket,
			Header:    header,
			JSON: listRequest{
				Prefix: prefix,
				Limit:  opts.Limit,
				SortBy: opts.SortBy,
			},
		}, &out)
		return out, err
	})
	if err != nil {
		return nil, httpjson.Kind("list objects", err)
	}

	objects := make([]domain.StoredObject, 0, len(entries))
	for _, e := range entries {
		obj := domain.StoredObject{Name: e.Name}
		if e.UpdatedAt != nil {
			obj.UpdatedAt = *e.UpdatedAt
		}
		if e.Metadata != nil {
			obj.Size = e.Metadata.Size
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *Storage) Upload(ctx context.Context, objectName string, body io.Reader, opts domain.UploadOptions) (domain.UploadedObject, error) {
	header, err := s.authHeader(ctx)
	if err != nil {
		return domain.UploadedObject{}, err
	}
	header.Set("Content-Type", opts.ContentType)
	header.Set("Cache-Control", "max-age=3600")
	header.Set("x-upsert", fmt.Sprint(opts.Upsert))

	err = s.executor.Run(ctx, "storage.upload", classifyUpload, func(ctx context.Context) error {
		return s.http.Do(ctx, httpjson.Request{
			Operation: "storage.upload",
			Method:    http.MethodPost,
			Path:      s.objectPath("/storage/v1/object/", objectName),
			Header:    header,
			Body:      body,
		}, nil)
	})
	if err != nil {
		return domain.UploadedObject{}, httpjson.Kind("upload object", err)
	}
	return domain.UploadedObject{Path: objectName}, nil
}

func (s *Storage) PublicURL(objectName string) string {
	return s.http.BaseURL() + s.objectPath("/storage/v1/object/public/", objectName)
}

func (s *Storage) objectPath(base, objectName string) string {
	segments := strings.Split(objectName, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + s.bucket + "/" + strings.Join(segments, "/")
}

func (s *Storage) authHeader(ctx context.Context) (http.Header, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage access token: %w", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}, nil
}

// classifyUpload never retries: the body reader is consumed by the first attempt.
func classifyUpload(err error) resilience.Outcome {
	out := httpjson.Classify(err)
	out.Retry = false
	return out
}
