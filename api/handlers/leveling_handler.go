package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetLevelingStatus returns settings, active mesh and saved meshes
func (h *Handler) GetLevelingStatus(c *gin.Context) {
	status, err := h.Service.Status()
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       statusSuccess,
		"settings":     status.Settings,
		"active_mesh":  status.ActiveMesh,
		"saved_meshes": status.SavedMeshes,
	})
}
