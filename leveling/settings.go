package leveling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/printercfg"
)

// FlatValue is the height written for every point of an invalidated mesh
const FlatValue = "0.000000"

// SlotsParameter names the slot purge in a settings result
const SlotsParameter = "mesh_slots"

// FlatMesh returns n*n zero points separated by ", ". Sizes outside
// 1..models.MaxGridSize give an empty mesh.
func FlatMesh(n int) string {
	if n <= 0 || n > models.MaxGridSize {
		return ""
	}
	points := make([]string, n*n)
	for i := range points {
		points[i] = FlatValue
	}
	return strings.Join(points, ", ")
}

// UpdateSettings applies a settings write. See updateSettings.
func (s *Service) UpdateSettings(update models.SettingsUpdate) (*models.Result, error) {
	return s.Execute(&models.Command{Type: models.UpdateSettings, Settings: &update})
}

// updateSettings changes grid size, bed temperature and precision.
//
// A new grid size invalidates the active mesh and every saved slot before
// probe_count is rewritten. The individual writes are not transactional:
// each one is attempted and reported on its own in the result.
func (s *Service) updateSettings(update *models.SettingsUpdate) (*models.Result, error) {
	state, err := s.printer.ReadState()
	if errors.Is(err, models.ErrConfigNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current settings: %w", err)
	}
	profile := state.Profile

	result := &models.Result{}
	record := func(parameter string, err error) {
		u := models.ParamUpdate{Parameter: parameter, Applied: err == nil}
		if err != nil {
			u.Error = err.Error()
			s.logger.Error("settings update failed", "parameter", parameter, "error", err)
		}
		result.Updates = append(result.Updates, u)
	}

	if update.GridSize != nil && *update.GridSize > 0 && *update.GridSize != state.GridSize {
		n := *update.GridSize
		s.logger.Info("grid size changed, invalidating meshes", "from", state.GridSize, "to", n)

		record(printercfg.ParamPoints,
			s.printer.UpdateParameter(profile.ConfigPath, printercfg.ParamPoints, FlatMesh(n)))

		s.slots.PurgeAll()
		record(SlotsParameter, nil)

		record(printercfg.ParamProbeCount,
			s.printer.UpdateParameter(profile.ConfigPath, printercfg.ParamProbeCount, fmt.Sprintf("%d,%d", n, n)))

		result.GridSizeChanged = true
	}

	if update.BedTemp != nil {
		record(printercfg.ParamBedTemp,
			s.printer.UpdateParameter(profile.ConfigPath, printercfg.ParamBedTemp, *update.BedTemp))
	}

	if update.Precision != nil {
		s.params.Set(ParamPrecision, *update.Precision)
		record(ParamPrecision, s.params.Persist())
	}

	result.Message = "Settings updated. Please reboot for changes to take effect."
	if failed := result.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, u := range failed {
			names = append(names, u.Parameter)
		}
		result.Message = fmt.Sprintf("Some settings could not be updated: %s.", strings.Join(names, ", "))
	}
	return result, nil
}
