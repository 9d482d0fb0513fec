// api/models/leveling.go
package models

// LevelingSettings is a snapshot of the probe settings read from the printer configuration
type LevelingSettings struct {
	GridSize  int     `json:"grid_size"`
	BedTemp   int     `json:"bed_temp"`
	Precision float64 `json:"precision"`
	ZOffset   float64 `json:"z_offset"`
}

// ActiveMesh is the mesh currently in effect on the printer
type ActiveMesh struct {
	MeshData string `json:"mesh_data"`
}

// MeshSlot is a saved copy of a mesh kept in a numbered slot
type MeshSlot struct {
	ID       int    `json:"id"`
	Date     string `json:"date"`
	MeshData string `json:"mesh_data"`
}

// LevelingStatus is the full read model served by GET /leveling
type LevelingStatus struct {
	Settings    LevelingSettings `json:"settings"`
	ActiveMesh  ActiveMesh       `json:"active_mesh"`
	SavedMeshes []MeshSlot       `json:"saved_meshes"`
}
