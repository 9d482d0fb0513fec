package meshstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
)

const (
	// MinSlotID and MaxSlotID bound the slot bank
	MinSlotID = 1
	MaxSlotID = 99

	// MaxMeshSize is the largest slot payload that can be read back
	MaxMeshSize = 4095

	// DateLayout is how slot modification times are reported
	DateLayout = "2006-01-02 15:04:05"
)

// WriteFunc writes a whole file in one go
type WriteFunc func(path string, data []byte) error

// Store keeps saved meshes as one text file per slot
type Store struct {
	// Directory holding the slot files
	path      string
	writeFile WriteFunc
	logger    hclog.Logger
}

// NewStore creates a new slot store rooted at path
func NewStore(path string, logger hclog.Logger) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create slot directory: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Store{
		path: path,
		writeFile: func(p string, data []byte) error {
			return os.WriteFile(p, data, 0644)
		},
		logger: logger.Named("meshstore"),
	}, nil
}

// SetWriter replaces the primitive used to write slot files
func (s *Store) SetWriter(w WriteFunc) {
	s.writeFile = w
}

// Dir returns the directory holding the slot files
func (s *Store) Dir() string {
	return s.path
}

// SlotPath returns the backing file of a slot
func (s *Store) SlotPath(id int) string {
	return filepath.Join(s.path, fmt.Sprintf("data_slot_%d.txt", id))
}

// ValidID reports whether id addresses a slot
func ValidID(id int) bool {
	return id >= MinSlotID && id <= MaxSlotID
}

// List returns every existing slot ordered by id
func (s *Store) List() ([]models.MeshSlot, error) {
	slots := make([]models.MeshSlot, 0)
	for id := MinSlotID; id <= MaxSlotID; id++ {
		slot, err := s.read(id)
		if errors.Is(err, models.ErrSlotNotFound) {
			continue
		}
		if err != nil {
			// A slot removed between stat and open is simply gone
			s.logger.Warn("skipping unreadable slot", "id", id, "error", err)
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Get returns a single slot
func (s *Store) Get(id int) (models.MeshSlot, error) {
	if !ValidID(id) {
		return models.MeshSlot{}, fmt.Errorf("slot %d: %w", id, models.ErrInvalidSlotID)
	}
	return s.read(id)
}

func (s *Store) read(id int) (models.MeshSlot, error) {
	path := s.SlotPath(id)
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.MeshSlot{}, fmt.Errorf("slot %d: %w", id, models.ErrSlotNotFound)
	}
	if err != nil {
		return models.MeshSlot{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return models.MeshSlot{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxMeshSize))
	if err != nil {
		return models.MeshSlot{}, fmt.Errorf("failed to read slot %d: %w", id, err)
	}

	return models.MeshSlot{
		ID:       id,
		Date:     st.ModTime().Local().Format(DateLayout),
		MeshData: strings.TrimRightFunc(string(data), unicode.IsSpace),
	}, nil
}

// Put creates or overwrites a slot with data verbatim
func (s *Store) Put(id int, data string) error {
	if !ValidID(id) {
		return fmt.Errorf("slot %d: %w", id, models.ErrInvalidSlotID)
	}
	if len(data) > MaxMeshSize {
		return fmt.Errorf("slot %d holds at most %d bytes: %w", id, MaxMeshSize, models.ErrMeshTooLarge)
	}

	if err := s.writeFile(s.SlotPath(id), []byte(data)); err != nil {
		s.logger.Error("failed to write slot", "id", id, "error", err)
		return fmt.Errorf("slot %d: %w: %v", id, models.ErrWriteFailure, err)
	}
	s.logger.Debug("slot written", "id", id, "size", humanize.Bytes(uint64(len(data))))
	return nil
}

// Delete removes a slot
func (s *Store) Delete(id int) error {
	if !ValidID(id) {
		return fmt.Errorf("slot %d: %w", id, models.ErrInvalidSlotID)
	}

	err := os.Remove(s.SlotPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("slot %d: %w", id, models.ErrSlotNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete slot %d: %w", id, err)
	}
	s.logger.Debug("slot deleted", "id", id)
	return nil
}

// PurgeAll removes every slot file that exists and returns how many went.
// Absent files are ignored; other removal errors are logged and skipped.
func (s *Store) PurgeAll() int {
	removed := 0
	for id := MinSlotID; id <= MaxSlotID; id++ {
		err := os.Remove(s.SlotPath(id))
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			s.logger.Warn("failed to purge slot", "id", id, "error", err)
		}
	}
	if removed > 0 {
		s.logger.Info("purged mesh slots", "count", removed)
	}
	return removed
}

// Replace swaps the whole slot bank for the given slots
func (s *Store) Replace(slots map[int]string) error {
	s.PurgeAll()
	for id, data := range slots {
		if err := s.Put(id, data); err != nil {
			return err
		}
	}
	return nil
}
