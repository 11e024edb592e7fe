package e2e_service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

type Response struct {
	StatusCode int
	Body       string
}

// ErrorMessage decodes the json error body returned for failed uploads.
func (r *Response) ErrorMessage() (string, error) {
	reply := struct {
		Error string `json:"error"`
	}{}
	if err := json.Unmarshal([]byte(r.Body), &reply); err != nil {
		return "", err
	}
	return reply.Error, nil
}

type ServiceApi struct {
	baseURL    string
	httpClient *http.Client
}

func NewServiceApi(baseURL string, timeout time.Duration) *ServiceApi {
	return &ServiceApi{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *ServiceApi) Get(path string) (*Response, error) {
	zap.S().Infof("[Service-API] GET %s%s", s.baseURL, path)
	res, err := s.httpClient.Get(s.baseURL + path)
	if err != nil {
		return nil, err
	}
	return readResponse(res)
}

// UploadFile posts the file found at filePath to /upload.
func (s *ServiceApi) UploadFile(filePath string) (*Response, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return s.Upload(filepath.Base(filePath), f)
}

func (s *ServiceApi) Upload(filename string, content io.Reader) (*Response, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	zap.S().Infof("[Service-API] POST %s/upload (%s)", s.baseURL, filename)
	res, err := s.httpClient.Post(s.baseURL+"/upload", writer.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	return readResponse(res)
}

func readResponse(res *http.Response) (*Response, error) {
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Body: string(body)}, nil
}
