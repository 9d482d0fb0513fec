// Package leveling keeps the active mesh, the saved slot bank and the probe
// settings consistent with each other.
//
// Every mutation runs under one service-wide lock, so a status read never
// observes half of a grid size change.
package leveling

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/devadigapratham/leveling3d/printercfg"
	"github.com/hashicorp/go-hclog"
)

// ParamPrecision is the parameters.cfg key holding the mesh precision
const ParamPrecision = "precision"

// PrinterConfig is the part of the printer configuration the service needs
type PrinterConfig interface {
	Locate() (printercfg.Profile, error)
	ReadState() (printercfg.State, error)
	UpdateParameter(path, name, value string) error
}

// ParamStore is the key=value settings file holding the precision
type ParamStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Persist() error
}

// Service owns the leveling state
type Service struct {
	mu sync.RWMutex

	printer PrinterConfig
	params  ParamStore
	slots   *meshstore.Store
	logger  hclog.Logger
}

// NewService creates a new leveling service
func NewService(printer PrinterConfig, params ParamStore, slots *meshstore.Store, logger hclog.Logger) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{
		printer: printer,
		params:  params,
		slots:   slots,
		logger:  logger.Named("leveling"),
	}
}

// ReadSettings takes one snapshot of the settings and the active mesh
func (s *Service) ReadSettings() (models.LevelingSettings, models.ActiveMesh, error) {
	state, err := s.printer.ReadState()
	if err != nil {
		return models.LevelingSettings{}, models.ActiveMesh{}, err
	}

	settings := models.LevelingSettings{
		GridSize: state.GridSize,
		BedTemp:  state.BedTemp,
		ZOffset:  state.ZOffset,
	}
	if raw, ok := s.params.Get(ParamPrecision); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			settings.Precision = v
		} else {
			s.logger.Warn("ignoring bad precision", "value", raw)
		}
	}

	return settings, models.ActiveMesh{MeshData: strings.TrimSpace(state.Points)}, nil
}

// Status composes settings, active mesh and the saved slots
func (s *Service) Status() (*models.LevelingStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, active, err := s.ReadSettings()
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.List()
	if err != nil {
		return nil, err
	}

	return &models.LevelingStatus{
		Settings:    settings,
		ActiveMesh:  active,
		SavedMeshes: slots,
	}, nil
}

// Execute applies a mutating command
func (s *Service) Execute(cmd *models.Command) (*models.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case models.SaveSlot:
		if err := s.slots.Put(cmd.SlotID, cmd.MeshData); err != nil {
			return nil, err
		}
		return &models.Result{Message: fmt.Sprintf("Mesh saved to slot %d.", cmd.SlotID)}, nil

	case models.DeleteSlot:
		if err := s.slots.Delete(cmd.SlotID); err != nil {
			return nil, err
		}
		return &models.Result{Message: fmt.Sprintf("Mesh slot %d deleted.", cmd.SlotID)}, nil

	case models.PurgeSlots:
		removed := s.slots.PurgeAll()
		return &models.Result{Message: "All mesh slots deleted.", Removed: removed}, nil

	case models.ActivateSlot:
		slot, err := s.slots.Get(cmd.SlotID)
		if err != nil {
			return nil, err
		}
		if err := s.writePoints(slot.MeshData); err != nil {
			return nil, err
		}
		return &models.Result{
			Message: fmt.Sprintf("Mesh from slot %d activated. Please reboot for changes to take effect.", cmd.SlotID),
		}, nil

	case models.WritePrinterMesh:
		if err := s.writePoints(cmd.MeshData); err != nil {
			return nil, err
		}
		return &models.Result{Message: "Active printer mesh updated. Please reboot for changes to take effect."}, nil

	case models.UpdateSettings:
		return s.updateSettings(cmd.Settings)
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownCommandType, cmd.Type)
}

func (s *Service) writePoints(mesh string) error {
	profile, err := s.printer.Locate()
	if err != nil {
		return err
	}
	if err := s.printer.UpdateParameter(profile.ConfigPath, printercfg.ParamPoints, mesh); err != nil {
		return fmt.Errorf("failed to update printer configuration: %w", err)
	}
	return nil
}
