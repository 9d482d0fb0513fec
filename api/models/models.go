// api/models/models.go
package models

import (
	"encoding/json"
	"fmt"
)

// CommandType represents the type of a mutating leveling command
type CommandType string

const (
	SaveSlot         CommandType = "SAVE_SLOT"
	DeleteSlot       CommandType = "DELETE_SLOT"
	PurgeSlots       CommandType = "PURGE_SLOTS"
	ActivateSlot     CommandType = "ACTIVATE_SLOT"
	WritePrinterMesh CommandType = "WRITE_PRINTER_MESH"
	UpdateSettings   CommandType = "UPDATE_SETTINGS"
)

// MaxGridSize is the largest probe grid the firmware accepts
const MaxGridSize = 20

// Command represents a mutation of the slot bank or the printer configuration
type Command struct {
	Type     CommandType     `json:"type"`
	SlotID   int             `json:"slot_id,omitempty"`
	MeshData string          `json:"mesh_data,omitempty"`
	Settings *SettingsUpdate `json:"settings,omitempty"`
}

// SettingsUpdate carries the optional fields of a settings write.
// A nil field was absent from the request.
type SettingsUpdate struct {
	GridSize  *int    `json:"grid_size,omitempty"`
	BedTemp   *string `json:"bed_temp,omitempty"`
	Precision *string `json:"precision,omitempty"`
}

// Marshal serializes a command to JSON
func (c *Command) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCommand deserializes a command from JSON
func UnmarshalCommand(data []byte) (*Command, error) {
	var c Command
	err := json.Unmarshal(data, &c)
	return &c, err
}

// Validate checks that the command carries what its type needs
func (c *Command) Validate() error {
	switch c.Type {
	case SaveSlot, DeleteSlot, ActivateSlot, PurgeSlots, WritePrinterMesh:
	case UpdateSettings:
		if c.Settings == nil {
			return fmt.Errorf("%s: %w", c.Type, ErrMissingPayload)
		}
		if n := c.Settings.GridSize; n != nil && *n > MaxGridSize {
			return fmt.Errorf("%w: %d is above %d", ErrInvalidGridSize, *n, MaxGridSize)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommandType, c.Type)
	}
	return nil
}

// ParamUpdate is the outcome of one named sub-operation of a settings write
type ParamUpdate struct {
	Parameter string `json:"parameter"`
	Applied   bool   `json:"applied"`
	Error     string `json:"error,omitempty"`
}

// Result is what a successfully executed command reports back
type Result struct {
	Message         string        `json:"message"`
	GridSizeChanged bool          `json:"grid_size_changed,omitempty"`
	Removed         int           `json:"removed,omitempty"`
	Updates         []ParamUpdate `json:"updates,omitempty"`
}

// Failed returns the sub-operations that did not apply
func (r *Result) Failed() []ParamUpdate {
	var failed []ParamUpdate
	for _, u := range r.Updates {
		if !u.Applied {
			failed = append(failed, u)
		}
	}
	return failed
}
