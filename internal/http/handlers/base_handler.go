// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"camionback/internal/modules/interest"
	"camionback/internal/modules/request"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps the module error taxonomy onto HTTP statuses in one
// place so every handler answers consistently.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, request.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, request.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrInvalidTransition),
		errors.Is(err, request.ErrAlreadyAssigned),
		errors.Is(err, request.ErrConflict),
		errors.Is(err, interest.ErrNoInterest):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
