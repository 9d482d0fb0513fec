package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// maxBodySize caps request bodies; a full 99x99 mesh fits comfortably
	maxBodySize = 64 << 10
)

var errMissingBody = fmt.Errorf("missing request body: %w", models.ErrMissingPayload)

// readBody returns the request body, answering 400 when there is none
func (h *Handler) readBody(c *gin.Context) (string, bool) {
	if c.Request.Body == nil {
		h.fail(c, errMissingBody)
		return "", false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, fmt.Errorf("request body over %d bytes: %w", maxBodySize, models.ErrMeshTooLarge))
			return "", false
		}
		h.fail(c, fmt.Errorf("%w: %v", errMissingBody, err))
		return "", false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		h.fail(c, errMissingBody)
		return "", false
	}
	return string(data), true
}

// succeed writes a success envelope with extra fields
func (h *Handler) succeed(c *gin.Context, message string, extra gin.H) {
	body := gin.H{"status": statusSuccess, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// fail writes an error envelope with the status code err maps to
func (h *Handler) fail(c *gin.Context, err error) {
	h.failWith(c, err, describe(err))
}

func (h *Handler) failWith(c *gin.Context, err error, message string) {
	code := models.StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(code, gin.H{"status": statusError, "message": message})
}

// describe turns an error into the message shown to the web UI
func describe(err error) string {
	switch {
	case errors.Is(err, errMissingBody):
		return "Missing request body."
	case errors.Is(err, models.ErrInvalidSlotID):
		return "Invalid slot ID."
	case errors.Is(err, models.ErrInvalidGridSize):
		return fmt.Sprintf("Invalid grid size, at most %d is allowed.", models.MaxGridSize)
	case errors.Is(err, models.ErrMeshTooLarge):
		return fmt.Sprintf("Mesh data too large, at most %d bytes are allowed.", meshstore.MaxMeshSize)
	case errors.Is(err, models.ErrSlotNotFound):
		return "Mesh slot not found."
	case errors.Is(err, models.ErrEndpointNotFound):
		return "API endpoint not found"
	case errors.Is(err, models.ErrWriteFailure):
		return "Failed to write to file."
	case errors.Is(err, models.ErrConfigNotFound):
		return "Could not detect printer configuration file."
	case errors.Is(err, models.ErrParameterNotFound):
		return "Failed to update printer configuration."
	case errors.Is(err, models.ErrNotLeader):
		return "Leveling journal is not ready, please retry."
	default:
		return err.Error()
	}
}
