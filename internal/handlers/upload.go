package handlers

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/kubev2v/document-extractor/internal/service"
	"github.com/kubev2v/document-extractor/pkg/requestid"
	"go.uber.org/zap"
)

const uploadField = "file"

//go:embed templates/upload.html
var templatesFS embed.FS

var uploadTemplate = template.Must(template.ParseFS(templatesFS, "templates/upload.html"))

type uploadPage struct {
	Result string
}

func (h *Handler) UploadForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, uploadPage{})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := zap.S().Named("upload_handler").With("request_id", requestid.FromRequest(r))

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	part, rawFilename, err := nextFilePart(r)
	if err != nil {
		if tooLarge(err) {
			_ = render.Render(w, r, ErrorReply{HTTPStatusCode: http.StatusRequestEntityTooLarge, Message: "File too large"})
			return
		}
		logger.Debugw("no file in request", "error", err)
		_ = render.Render(w, r, badRequest("No file part"))
		return
	}
	defer part.Close()

	// browsers send the field with an empty file name when no file was picked
	if rawFilename == "" {
		_ = render.Render(w, r, badRequest("No selected file"))
		return
	}

	filename := SecureFilename(rawFilename)
	if filename == "" {
		logger.Warnw("rejecting file name", "filename", rawFilename)
		_ = render.Render(w, r, badRequest("Invalid file name"))
		return
	}

	localPath, err := h.saveLocal(part, filename)
	if err != nil {
		if tooLarge(err) {
			_ = render.Render(w, r, ErrorReply{HTTPStatusCode: http.StatusRequestEntityTooLarge, Message: "File too large"})
			return
		}
		logger.Errorw("error saving uploaded file", "filename", filename, "error", err)
		_ = render.Render(w, r, internalError("Failed to save uploaded file"))
		return
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			logger.Warnw("error removing local copy", "path", localPath, "error", err)
		}
	}()

	doc, err := h.extractor.Extract(r.Context(), service.Upload{Filename: filename, LocalPath: localPath})
	if err != nil {
		_ = render.Render(w, r, internalError(extractionErrorMessage(err)))
		return
	}

	h.renderPage(w, r, uploadPage{Result: doc.Text()})
}

// nextFilePart streams the multipart body up to the first file part of the
// upload field. Parts of that field without a filename parameter are plain
// form values and are skipped. The returned name may be empty.
func nextFilePart(r *http.Request) (*multipart.Part, string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, "", err
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, "", http.ErrMissingFile
			}
			return nil, "", err
		}

		if part.FormName() == uploadField {
			if filename, ok := fileNameParam(part); ok {
				return part, filename, nil
			}
		}
		_ = part.Close()
	}
}

func fileNameParam(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	filename, ok := params["filename"]
	return filename, ok
}

func tooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// saveLocal copies the upload under a name unique to this request so that
// concurrent uploads of the same file do not overwrite each other.
func (h *Handler) saveLocal(src io.Reader, filename string) (string, error) {
	localPath := filepath.Join(h.uploadDir, uuid.NewString()+"-"+filename)

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(localPath)
		return "", err
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(localPath)
		return "", err
	}

	return localPath, nil
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, page uploadPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := uploadTemplate.Execute(w, page); err != nil {
		zap.S().Named("upload_handler").Errorw("error rendering upload page", "request_id", requestid.FromRequest(r), "error", err)
	}
}

func extractionErrorMessage(err error) string {
	var (
		storeErr     *service.StoreError
		submitErr    *service.SubmitError
		timeoutErr   *service.TimeoutError
		jobFailedErr *service.JobFailedError
		fetchErr     *service.FetchError
	)

	switch {
	case errors.As(err, &storeErr):
		return "Failed to upload file to S3"
	case errors.As(err, &submitErr):
		return "Failed to start Textract job"
	case errors.As(err, &timeoutErr):
		return "Textract job timed out"
	case errors.As(err, &jobFailedErr):
		return "Textract job failed"
	case errors.As(err, &fetchErr):
		return "Failed to get Textract results"
	default:
		return "Internal server error"
	}
}
