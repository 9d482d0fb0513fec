package handlers

import (
	"errors"
	"fmt"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/jsonfield"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/gin-gonic/gin"
)

const (
	fieldMeshData = "mesh_data"

	// allSlots in place of an id addresses the whole slot bank
	allSlots = "all"
)

var errMissingMeshData = fmt.Errorf("invalid JSON payload, missing %q: %w", fieldMeshData, models.ErrMissingPayload)

// slotID parses the :id path parameter, answering 400 when it is out of range
func (h *Handler) slotID(c *gin.Context) (int, bool) {
	id := jsonfield.Atoi(c.Param("id"))
	if !meshstore.ValidID(id) {
		h.fail(c, models.ErrInvalidSlotID)
		return 0, false
	}
	return id, true
}

// meshData pulls mesh_data out of the request body
func (h *Handler) meshData(c *gin.Context) (string, bool) {
	body, ok := h.readBody(c)
	if !ok {
		return "", false
	}
	mesh, found := jsonfield.Extract(body, fieldMeshData)
	if !found {
		h.failWith(c, errMissingMeshData, "Invalid JSON payload. Missing 'mesh_data'.")
		return "", false
	}
	return mesh, true
}

// PutMeshSlot saves mesh data into a slot
func (h *Handler) PutMeshSlot(c *gin.Context) {
	id, ok := h.slotID(c)
	if !ok {
		return
	}
	mesh, ok := h.meshData(c)
	if !ok {
		return
	}

	res, err := h.Executor.Execute(&models.Command{
		Type:     models.SaveSlot,
		SlotID:   id,
		MeshData: mesh,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.Metrics.slotWrites.Inc()
	h.succeed(c, res.Message, nil)
}

// DeleteMeshSlot removes a slot, or every slot when the id is "all"
func (h *Handler) DeleteMeshSlot(c *gin.Context) {
	if c.Param("id") == allSlots {
		res, err := h.Executor.Execute(&models.Command{Type: models.PurgeSlots})
		if err != nil {
			h.fail(c, err)
			return
		}
		h.Metrics.slotDeletes.Add(float64(res.Removed))
		h.succeed(c, res.Message, gin.H{"removed": res.Removed})
		return
	}

	id, ok := h.slotID(c)
	if !ok {
		return
	}

	res, err := h.Executor.Execute(&models.Command{Type: models.DeleteSlot, SlotID: id})
	if errors.Is(err, models.ErrSlotNotFound) {
		h.failWith(c, err, fmt.Sprintf("Could not delete mesh slot %d. It may not exist.", id))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	h.Metrics.slotDeletes.Inc()
	h.succeed(c, res.Message, nil)
}

// ActivateMeshSlot copies a saved slot into the active printer mesh
func (h *Handler) ActivateMeshSlot(c *gin.Context) {
	id, ok := h.slotID(c)
	if !ok {
		return
	}

	res, err := h.Executor.Execute(&models.Command{Type: models.ActivateSlot, SlotID: id})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.succeed(c, res.Message, nil)
}
