package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-notebook/internal/config"
	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

const (
	uploadField         = "files"
	multipartMemoryCap  = 32 << 20
	defaultBackpressure = 250 * time.Millisecond
)

// Router serves the notebook to browser clients.
type Router struct {
	cfg      config.Config
	notebook ports.NotebookService
	metrics  metricsProvider
	logger   *slog.Logger
	newID    func() string
}

type metricsProvider interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

type RouterOption func(*Router)

func WithMetrics(m metricsProvider) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithRequestIDs sets how ids are minted for requests that arrive without a usable one.
func WithRequestIDs(newID func() string) RouterOption {
	return func(rt *Router) {
		if newID != nil {
			rt.newID = newID
		}
	}
}

func NewRouter(cfg config.Config, notebook ports.NotebookService, opts ...RouterOption) *Router {
	rt := &Router{cfg: cfg, notebook: notebook, logger: slog.Default(), newID: uuid.NewString}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/session", rt.session)
	api.HandleFunc("/v1/sources", rt.sources)
	api.HandleFunc("/v1/sources/", rt.sourceByID)
	api.HandleFunc("/v1/chat/messages", rt.chatMessages)
	api.HandleFunc("/v1/chat/history", rt.chatHistory)
	api.HandleFunc("/v1/summary", rt.summary)
	api.HandleFunc("/v1/summary/refresh", rt.refreshSummary)
	api.HandleFunc("/v1/documents/process", rt.processDocuments)

	wait := time.Duration(rt.cfg.APIBackpressureWait) * time.Millisecond
	if wait <= 0 {
		wait = defaultBackpressure
	}
	var limited http.Handler = api
	limited = bearerAuthMiddleware(limited, rt.cfg.APIAuthToken)
	limited = backpressureMiddleware(limited, rt.cfg.APIMaxInFlight, wait)
	limited = rateLimitMiddleware(limited, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	return requestIDMiddleware(handler, rt.newID)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	domain.SessionState
	Status domain.NotebookStatus `json:"status"`
}

func (rt *Router) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	state := rt.notebook.Session()
	writeJSON(w, http.StatusOK, sessionResponse{SessionState: state, Status: state.Status()})
}

func (rt *Router) sources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.notebook.Sources())
	case http.MethodPost:
		rt.uploadSources(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

type uploadResponse struct {
	domain.UploadBatchResult
	Status domain.UploadStatus `json:"status"`
}

func (rt *Router) uploadSources(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIMaxUploadBytes > 0 {
		if r.ContentLength > rt.cfg.APIMaxUploadBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload is too large"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryCap); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart body is required"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers, ok := r.MultipartForm.File[uploadField]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	files := make([]domain.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, multipartFile(fh))
	}

	result, err := rt.notebook.Upload(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{UploadBatchResult: result, Status: result.Status()})
}

// multipartFile keeps the part's declared type; a part without one is
// treated as a PDF only when its name says so.
func multipartFile(fh *multipart.FileHeader) domain.File {
	contentType := fh.Header.Get("Content-Type")
	if (contentType == "" || contentType == "application/octet-stream") && domain.IsPDFName(fh.Filename) {
		contentType = domain.PDFContentType
	}
	return domain.NewFile(fh.Filename, contentType, fh.Size, func() (io.ReadCloser, error) {
		return fh.Open()
	})
}

func (rt *Router) sourceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/sources/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source id is required"})
		return
	}
	if !rt.notebook.RemoveSource(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "source not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) chatMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rt.notebook.Chat())
	case http.MethodPost:
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		msg, err := rt.notebook.Ask(r.Context(), req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	history, err := rt.notebook.ChatHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, history)
}

func (rt *Router) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.notebook.Summary(r.Context()))
}

func (rt *Router) refreshSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, rt.notebook.RefreshSummary(r.Context()))
}

func (rt *Router) processDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	result, err := rt.notebook.ProcessDocuments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, result)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRawJSON(w http.ResponseWriter, status int, payload json.RawMessage) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
