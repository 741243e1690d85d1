package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/middleware"
	"vehicle-service-server/models"
	"vehicle-service-server/services"
)

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"message": err.Error(),
			"details": verr.Fields,
		})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "message": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": err.Error()})
	case errors.Is(err, services.ErrWrongState):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid state", "message": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "message": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": err.Error()})
	case errors.Is(err, services.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account disabled", "message": err.Error()})
	default:
		logger.Error("❌ Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.ContextRequestID)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": "Something went wrong"})
	}
}

// respondResult writes a lifecycle result. An already-done outcome is not an
// error for the client: it gets the unchanged resource and a warning.
func respondResult(c *gin.Context, message string, result services.Result, err error) {
	if err != nil && !errors.Is(err, services.ErrAlreadyDone) {
		respondError(c, err)
		return
	}
	body := gin.H{"message": message, "data": result}
	if result.Warning != "" {
		body["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, body)
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "message": err.Error()})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID", "message": name + " must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

// statusQuery reads repeated or comma separated ?status= values.
func statusQuery(c *gin.Context) ([]models.BookingStatus, bool) {
	var out []models.BookingStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			s := models.BookingStatus(part)
			if !s.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "message": "unknown booking status " + part})
				return nil, false
			}
			out = append(out, s)
		}
	}
	return out, true
}
