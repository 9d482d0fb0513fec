package handlers

import (
	"net/http"
	"strings"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/jsonfield"
	"github.com/gin-gonic/gin"
)

// PutSettings updates grid size, bed temperature and precision.
// Each field is optional and extracted independently from the body.
func (h *Handler) PutSettings(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}

	var update models.SettingsUpdate
	if v, ok := jsonfield.Extract(body, "grid_size"); ok {
		n := jsonfield.Atoi(v)
		update.GridSize = &n
	}
	if v, ok := jsonfield.Extract(body, "bed_temp"); ok {
		v = strings.TrimSpace(v)
		update.BedTemp = &v
	}
	if v, ok := jsonfield.Extract(body, "precision"); ok {
		v = strings.TrimSpace(v)
		update.Precision = &v
	}

	res, err := h.Executor.Execute(&models.Command{
		Type:     models.UpdateSettings,
		Settings: &update,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.GridSizeChanged {
		h.Metrics.gridChanges.Inc()
	}
	updates := res.Updates
	if updates == nil {
		updates = []models.ParamUpdate{}
	}

	code, status := http.StatusOK, statusSuccess
	if len(res.Failed()) > 0 {
		code, status = http.StatusInternalServerError, statusError
		h.Logger.Error("settings partially applied", "failed", res.Failed())
	}
	c.JSON(code, gin.H{
		"status":            status,
		"message":           res.Message,
		"grid_size_changed": res.GridSizeChanged,
		"updates":           updates,
	})
}
