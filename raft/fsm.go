package raft

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
)

// Executor runs a leveling command against the files it changes
type Executor interface {
	Execute(cmd *models.Command) (*models.Result, error)
}

// ApplyResponse is what FSM.Apply hands back to the caller of Node.Execute
type ApplyResponse struct {
	Result   *models.Result
	Err      error
	Replayed bool
}

// FSM implements the raft.FSM interface by running journaled commands
// against the slot bank and the printer configuration
type FSM struct {
	mu sync.Mutex

	executor Executor
	slots    *meshstore.Store
	meta     *MetaStore
	applied  uint64
	logger   hclog.Logger
}

// NewFSM creates a new FSM
func NewFSM(executor Executor, slots *meshstore.Store, meta *MetaStore, logger hclog.Logger) (*FSM, error) {
	applied, err := meta.AppliedIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to read applied index: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FSM{
		executor: executor,
		slots:    slots,
		meta:     meta,
		applied:  applied,
		logger:   logger.Named("fsm"),
	}, nil
}

// Apply applies a Raft log entry to the FSM. An entry that cannot be
// decoded or whose command panics is still marked applied so a restart
// does not replay it again.
func (f *FSM) Apply(log *raft.Log) (resp interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Entries replayed after a restart already reached the files
	if log.Index <= f.applied {
		return &ApplyResponse{Replayed: true}
	}

	cmd, err := models.UnmarshalCommand(log.Data)
	if err != nil {
		f.markApplied(log.Index)
		return &ApplyResponse{Err: fmt.Errorf("failed to unmarshal command: %w", err)}
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("command panicked", "index", log.Index, "type", cmd.Type, "panic", r)
			f.markApplied(log.Index)
			resp = &ApplyResponse{Err: fmt.Errorf("command %s at index %d failed: %v", cmd.Type, log.Index, r)}
		}
	}()

	result, err := f.executor.Execute(cmd)
	f.markApplied(log.Index)
	f.logger.Debug("applied command", "index", log.Index, "type", cmd.Type, "error", err)

	return &ApplyResponse{Result: result, Err: err}
}

func (f *FSM) markApplied(index uint64) {
	f.applied = index
	if err := f.meta.SetAppliedIndex(index); err != nil {
		f.logger.Error("failed to persist applied index", "index", index, "error", err)
	}
}

// AppliedIndex returns the last applied journal index
func (f *FSM) AppliedIndex() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied
}

// Snapshot captures the saved slot bank
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.slots.List()
	if err != nil {
		return nil, err
	}

	snap := &fsmSnapshot{
		AppliedIndex: f.applied,
		Slots:        make(map[int]string, len(slots)),
	}
	for _, slot := range slots {
		snap.Slots[slot.ID] = slot.MeshData
	}
	return snap, nil
}

// Restore rewrites the slot bank from a snapshot newer than what the files hold
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if snap.AppliedIndex <= f.applied {
		f.logger.Debug("snapshot is not newer than the files, skipping", "snapshot", snap.AppliedIndex, "applied", f.applied)
		return nil
	}
	if err := f.slots.Replace(snap.Slots); err != nil {
		return fmt.Errorf("failed to restore slots: %w", err)
	}
	f.markApplied(snap.AppliedIndex)
	f.logger.Info("restored slot bank from snapshot", "index", snap.AppliedIndex, "slots", len(snap.Slots))
	return nil
}

// fsmSnapshot implements the raft.FSMSnapshot interface
type fsmSnapshot struct {
	AppliedIndex uint64         `json:"applied_index"`
	Slots        map[int]string `json:"slots"`
}

// Persist saves the snapshot to the provided sink
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		// Encode the snapshot
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
		return err
	}

	return nil
}

// Release is a no-op
func (s *fsmSnapshot) Release() {}
