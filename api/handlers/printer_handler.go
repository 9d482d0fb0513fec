package handlers

import (
	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/gin-gonic/gin"
)

// PutPrinterMesh replaces the active mesh in the printer configuration.
// The grid size and the saved slots are left alone.
func (h *Handler) PutPrinterMesh(c *gin.Context) {
	mesh, ok := h.meshData(c)
	if !ok {
		return
	}

	res, err := h.Executor.Execute(&models.Command{
		Type:     models.WritePrinterMesh,
		MeshData: mesh,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.succeed(c, res.Message, nil)
}
