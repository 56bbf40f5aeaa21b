package api

import (
	"errors"
	"net/http"
	"strconv"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/directory"
	"whatsapp-assistant/internal/menu"

	"github.com/gin-gonic/gin"
)

var errInvalidID = errors.New("invalid id")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, directory.ErrInvalidCategory),
		errors.Is(err, menu.ErrInvalidParent),
		errors.Is(err, menu.ErrSubmenuFull),
		errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}
