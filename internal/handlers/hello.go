package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HelloHandler serves the static greeting service.
type HelloHandler struct {
	hostname string
}

func NewHelloHandler(hostname string) *HelloHandler {
	return &HelloHandler{hostname: hostname}
}

func (h *HelloHandler) RegisterRoutes(router chi.Router) {
	router.Get("/", h.Greet)
	router.Get("/health", h.Health)
}

func (h *HelloHandler) Greet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Hello, World! Hostname: %s", h.hostname)
}

func (h *HelloHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Status: OK"))
}
