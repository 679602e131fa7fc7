package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/response"
)

// writeError maps store errors onto the error envelope.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, fallback)
	case xerrors.Is(err, xerrors.ErrConflict):
		response.Error(c, http.StatusConflict, "CONFLICT", fallback)
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case xerrors.Is(err, xerrors.ErrUnauthorized):
		response.Unauthorized(c, "UNAUTHORIZED", "Unauthorized")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL", fallback)
	}
}
