package raft

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// Node journals leveling commands through a single-server Raft log
type Node struct {
	raft         *raft.Raft
	fsm          *FSM
	transport    raft.Transport
	closers      []io.Closer
	applyTimeout time.Duration
	logger       hclog.Logger
}

// Config represents the configuration for a Raft node
type Config struct {
	NodeID   string
	RaftAddr string
	RaftDir  string
	// InMemory keeps log, snapshots and transport in memory
	InMemory bool
	// HeartbeatTimeout also drives election and lease timeouts when set
	HeartbeatTimeout time.Duration
	ApplyTimeout     time.Duration
}

// NewNode creates a new Raft node and bootstraps it as a one-server cluster
func NewNode(config *Config, executor Executor, slots *meshstore.Store, logger hclog.Logger) (*Node, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("journal")

	metaDir := ""
	if !config.InMemory {
		metaDir = filepath.Join(config.RaftDir, "meta")
	}
	meta, err := NewMetaStore(metaDir)
	if err != nil {
		return nil, err
	}

	// Create the FSM
	fsm, err := NewFSM(executor, slots, meta, logger)
	if err != nil {
		return nil, err
	}

	// Create Raft configuration
	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(config.NodeID)
	raftConfig.SnapshotInterval = 20 * time.Second
	raftConfig.SnapshotThreshold = 1024
	raftConfig.Logger = logger.Named("raft")
	if config.HeartbeatTimeout > 0 {
		raftConfig.HeartbeatTimeout = config.HeartbeatTimeout
		raftConfig.ElectionTimeout = config.HeartbeatTimeout
		raftConfig.LeaderLeaseTimeout = config.HeartbeatTimeout
		raftConfig.CommitTimeout = config.HeartbeatTimeout / 10
	}

	node := &Node{
		fsm:          fsm,
		applyTimeout: config.ApplyTimeout,
		logger:       logger,
	}
	if node.applyTimeout <= 0 {
		node.applyTimeout = 5 * time.Second
	}

	var (
		logStore      raft.LogStore
		stableStore   raft.StableStore
		snapshotStore raft.SnapshotStore
	)

	if config.InMemory {
		store := raft.NewInmemStore()
		logStore, stableStore = store, store
		snapshotStore = raft.NewInmemSnapshotStore()
		_, node.transport = raft.NewInmemTransport(raft.ServerAddress(config.RaftAddr))
	} else {
		if err := os.MkdirAll(config.RaftDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}

		// Create the BoltDB store for logs
		bolt, err := raftboltdb.NewBoltStore(filepath.Join(config.RaftDir, "raft-log.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to create BoltDB log store: %w", err)
		}
		node.closers = append(node.closers, bolt)
		logStore = bolt

		// Create the stable store for data
		stable, err := raftboltdb.NewBoltStore(filepath.Join(config.RaftDir, "raft-stable.db"))
		if err != nil {
			node.closeStores()
			return nil, fmt.Errorf("failed to create BoltDB stable store: %w", err)
		}
		node.closers = append(node.closers, stable)
		stableStore = stable

		// Create the snapshot store
		snapshotStore, err = raft.NewFileSnapshotStoreWithLogger(config.RaftDir, 3, logger.Named("snapshots"))
		if err != nil {
			node.closeStores()
			return nil, fmt.Errorf("failed to create snapshot store: %w", err)
		}

		// Setup TCP transport
		addr, err := net.ResolveTCPAddr("tcp", config.RaftAddr)
		if err != nil {
			node.closeStores()
			return nil, fmt.Errorf("failed to resolve TCP address: %w", err)
		}
		node.transport, err = raft.NewTCPTransportWithLogger(config.RaftAddr, addr, 3, 10*time.Second, logger.Named("transport"))
		if err != nil {
			node.closeStores()
			return nil, fmt.Errorf("failed to create TCP transport: %w", err)
		}
	}

	// Only bootstrap a fresh journal
	hasState, err := raft.HasExistingState(logStore, stableStore, snapshotStore)
	if err != nil {
		node.closeStores()
		return nil, fmt.Errorf("failed to inspect journal state: %w", err)
	}

	// Create the Raft instance
	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, node.transport)
	if err != nil {
		node.closeStores()
		return nil, fmt.Errorf("failed to create Raft instance: %w", err)
	}
	node.raft = r

	if !hasState {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raft.ServerID(config.NodeID),
					Address: node.transport.LocalAddr(),
				},
			},
		}
		f := r.BootstrapCluster(configuration)
		if err := f.Error(); err != nil && err != raft.ErrCantBootstrap {
			node.Shutdown()
			return nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
	}

	return node, nil
}

// Execute journals a command and returns what applying it produced
func (n *Node) Execute(cmd *models.Command) (*models.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !n.Leader() {
		return nil, models.ErrNotLeader
	}

	data, err := cmd.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	// Apply the command to the Raft log
	future := n.raft.Apply(data, n.applyTimeout)
	if err := future.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return nil, fmt.Errorf("%w: %v", models.ErrNotLeader, err)
		}
		return nil, fmt.Errorf("failed to apply command to Raft log: %w", err)
	}

	resp, ok := future.Response().(*ApplyResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected journal response %T", future.Response())
	}
	return resp.Result, resp.Err
}

// GetFSM returns the FSM
func (n *Node) GetFSM() *FSM {
	return n.fsm
}

// Leader returns true if this node is the leader
func (n *Node) Leader() bool {
	return n.raft.State() == raft.Leader
}

// State returns the current state of the Raft node
func (n *Node) State() raft.RaftState {
	return n.raft.State()
}

// WaitForLeader blocks until the node leads or timeout passes
func (n *Node) WaitForLeader(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !n.Leader() {
		if time.Now().After(deadline) {
			return fmt.Errorf("no leadership after %s: %w", timeout, models.ErrNotLeader)
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

// Snapshot forces a snapshot of the journal
func (n *Node) Snapshot() error {
	return n.raft.Snapshot().Error()
}

// Shutdown stops the Raft node
func (n *Node) Shutdown() error {
	var err error
	if n.raft != nil {
		err = n.raft.Shutdown().Error()
	}

	// Shutdown the transport
	if c, ok := n.transport.(raft.WithClose); ok {
		c.Close()
	}
	n.closeStores()
	return err
}

func (n *Node) closeStores() {
	for _, c := range n.closers {
		if err := c.Close(); err != nil {
			n.logger.Warn("failed to close journal store", "error", err)
		}
	}
	n.closers = nil
}
