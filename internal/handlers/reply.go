package handlers

import (
	"net/http"

	"github.com/go-chi/render"
)

type ErrorReply struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"error"`
}

func (e ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func badRequest(message string) ErrorReply {
	return ErrorReply{HTTPStatusCode: http.StatusBadRequest, Message: message}
}

func internalError(message string) ErrorReply {
	return ErrorReply{HTTPStatusCode: http.StatusInternalServerError, Message: message}
}
