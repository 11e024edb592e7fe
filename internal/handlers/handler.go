package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kubev2v/document-extractor/internal/analysis"
	"github.com/kubev2v/document-extractor/internal/service"
)

const indexPage = `<p>Hello, World!</p><a href="/upload">file upload</a>`

// Extractor runs a text extraction for a file already copied to local disk.
type Extractor interface {
	Extract(ctx context.Context, upload service.Upload) (*analysis.Document, error)
}

type Handler struct {
	extractor     Extractor
	uploadDir     string
	maxUploadSize int64
}

func NewHandler(extractor Extractor, uploadDir string, maxUploadSize int64) *Handler {
	return &Handler{
		extractor:     extractor,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/", h.Index)
	router.Get("/health", h.Health)
	router.Get("/upload", h.UploadForm)
	router.Post("/upload", h.Upload)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
