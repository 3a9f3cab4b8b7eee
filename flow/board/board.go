// Package board implements the Board container: the immutable-per-run
// graph of nodes, pins, comments, variables, and layers, plus the
// mutation/versioning operations for it.
package board

import (
	"fmt"
	"sync"

	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
)

// Stage is the board's deployment stage, gating trace variable capture
// and, conventionally, which release channel may point at it.
type Stage string

const (
	StageDev     Stage = "dev"
	StageInt     Stage = "int"
	StageQA      Stage = "qa"
	StagePreProd Stage = "preprod"
	StageProd    Stage = "prod"
)

// LogLevel filters trace log collection.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
	LogFatal LogLevel = "fatal"
)

// Version is a (major, minor, patch) triple.
type Version [3]uint32

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

func (v Version) Less(o Version) bool {
	for i := 0; i < 3; i++ {
		if v[i] != o[i] {
			return v[i] < o[i]
		}
	}
	return false
}

// Board is the per-run container this engine runs against. Mutation is guarded by
// mu so that OpenBoard(readOnly=false) can hand out a single shared
// mutable handle, while OpenBoard(true) hands out an
// unguarded snapshot copy.
type Board struct {
	mu sync.RWMutex

	ID          string
	Name        string
	Description string
	Version     Version
	Stage       Stage
	LogLevel    LogLevel

	Nodes     map[string]*node.Node
	Comments  map[string]*Comment
	Variables map[string]*Variable
	Layers    map[string]*Layer
}

// New creates an empty board at version (0,0,1), the lowest patch a
// freshly created board is considered to hold (grounded in cmd/orchestrator's
// artifact versioning, which never mints a (0,0,0) version).
func New(id, name string) *Board {
	return &Board{
		ID:        id,
		Name:      name,
		Version:   Version{0, 0, 1},
		Stage:     StageDev,
		LogLevel:  LogInfo,
		Nodes:     make(map[string]*node.Node),
		Comments:  make(map[string]*Comment),
		Variables: make(map[string]*Variable),
		Layers:    make(map[string]*Layer),
	}
}

// Lock/Unlock expose the board's write lock to the command log,
// which must serialize execute/undo against concurrent reads.
func (b *Board) Lock()    { b.mu.Lock() }
func (b *Board) Unlock()  { b.mu.Unlock() }
func (b *Board) RLock()   { b.mu.RLock() }
func (b *Board) RUnlock() { b.mu.RUnlock() }

// Clone produces a deep-enough copy for OpenBoard(readOnly=true) and for
// CreateVersion's snapshot-under-a-new-tuple semantics.
func (b *Board) Clone() *Board {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clone := &Board{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Version:     b.Version,
		Stage:       b.Stage,
		LogLevel:    b.LogLevel,
		Nodes:       make(map[string]*node.Node, len(b.Nodes)),
		Comments:    make(map[string]*Comment, len(b.Comments)),
		Variables:   make(map[string]*Variable, len(b.Variables)),
		Layers:      make(map[string]*Layer, len(b.Layers)),
	}
	for id, n := range b.Nodes {
		nc := *n
		nc.Pins = make(map[string]*pin.Pin, len(n.Pins))
		for pid, p := range n.Pins {
			pc := *p
			pc.Connections = append([]string(nil), p.Connections...)
			nc.Pins[pid] = &pc
		}
		nc.PinOrder = append([]string(nil), n.PinOrder...)
		clone.Nodes[id] = &nc
	}
	for id, c := range b.Comments {
		cc := *c
		clone.Comments[id] = &cc
	}
	for id, v := range b.Variables {
		vc := *v
		clone.Variables[id] = &vc
	}
	for id, l := range b.Layers {
		lc := *l
		clone.Layers[id] = &lc
	}
	return clone
}

// LookupPin finds a pin by id across every node on the board. Implements
// node.BoardAccessor for NodeLogic.OnUpdate callbacks.
func (b *Board) LookupPin(pinID string) (*pin.Pin, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, n := range b.Nodes {
		if p, ok := n.Pins[pinID]; ok {
			return p, true
		}
	}
	return nil, false
}

// PropagateGeneric re-runs the generic-type walker starting from pinID
// with the resolved concrete type. Implements node.BoardAccessor.
func (b *Board) PropagateGeneric(pinID string, resolved string) error {
	return b.ResolveGenerics(pinID, pin.VariableType(resolved))
}

// Validate checks every board-wide structural invariant. It does
// not mutate the board; FixPins is the repair pass.
func (b *Board) Validate() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seenNodeIDs := make(map[string]bool, len(b.Nodes))
	for id, n := range b.Nodes {
		if id != n.ID {
			return fmt.Errorf("node map key %q does not match node.ID %q", id, n.ID)
		}
		if seenNodeIDs[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seenNodeIDs[n.ID] = true

		if err := n.Validate(); err != nil {
			return err
		}

		seenPinIDs := make(map[string]bool, len(n.Pins))
		for pid, p := range n.Pins {
			if seenPinIDs[pid] {
				return fmt.Errorf("duplicate pin id %q on node %q", pid, n.ID)
			}
			seenPinIDs[pid] = true

			inputConns := 0
			for _, peerID := range p.Connections {
				peer, ok := b.lookupPinLocked(peerID)
				if !ok {
					return fmt.Errorf("pin %q references missing connection %q", pid, peerID)
				}
				if !p.CanConnect(peer) {
					return fmt.Errorf("pin %q connects incompatibly to %q", pid, peerID)
				}
			}
			if p.Direction == pin.DirectionInput && !p.IsExec() {
				inputConns = len(p.Connections)
				if inputConns > 1 {
					return fmt.Errorf("input data pin %q has %d incoming connections", pid, inputConns)
				}
			}
		}
	}
	return nil
}

func (b *Board) lookupPinLocked(pinID string) (*pin.Pin, bool) {
	for _, n := range b.Nodes {
		if p, ok := n.Pins[pinID]; ok {
			return p, true
		}
	}
	return nil, false
}

// FixPins is the normalization pass run after any pin-altering command:
// it removes dangling connections, deduplicates references, and
// recomputes generic substitutions. It is idempotent.
func (b *Board) FixPins() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := make(map[string]bool)
	for _, n := range b.Nodes {
		for pid := range n.Pins {
			existing[pid] = true
		}
	}

	for _, n := range b.Nodes {
		for _, p := range n.Pins {
			deduped := make([]string, 0, len(p.Connections))
			seen := make(map[string]bool, len(p.Connections))
			for _, peerID := range p.Connections {
				if !existing[peerID] || seen[peerID] {
					continue
				}
				seen[peerID] = true
				deduped = append(deduped, peerID)
			}
			p.Connections = deduped
		}
	}

	return b.resolveAllGenericsLocked()
}
