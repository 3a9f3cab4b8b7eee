package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lyzr/flowengine/flow/node"
)

// Store is the persistence collaborator the board service is built on:
// versioned snapshots addressed by board id and version, plus a mutable
// "current" draft. The implementation in internal/boardstore writes each
// snapshot as a content-addressed blob (external/store) and records its
// ref in a Postgres index (internal/db) of board id -> current draft /
// version list; it does not lay snapshots out under an
// apps/{app_id}/boards/{board_id}/... path scheme.
type Store interface {
	PutSnapshot(ctx context.Context, boardID string, v Version, data []byte) error
	GetSnapshot(ctx context.Context, boardID string, v Version) ([]byte, error)
	ListVersions(ctx context.Context, boardID string) ([]Version, error)
	PutCurrent(ctx context.Context, boardID string, data []byte) error
	GetCurrent(ctx context.Context, boardID string) ([]byte, error)
	DeleteBoard(ctx context.Context, boardID string) error
}

// snapshot is the wire format for a board: JSON rather than
// protobuf, see DESIGN.md for why — the dependency stack has no protobuf
// codec anywhere and encoding/json is what actually moves board/IR data
// through content-addressed storage end to end. Node and Pin marshal directly
// since every field that needs custom handling (value.Value defaults)
// carries its own MarshalJSON/UnmarshalJSON.
type snapshot struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Version     Version               `json:"version"`
	Stage       Stage                 `json:"stage"`
	LogLevel    LogLevel              `json:"log_level"`
	Nodes       map[string]*node.Node `json:"nodes"`
	Comments    map[string]*Comment   `json:"comments"`
	Variables   map[string]*Variable  `json:"variables"`
	Layers      map[string]*Layer     `json:"layers"`
}

// Service exposes the board lifecycle operations on top of a
// Store. A single Service may be shared by multiple HTTP handlers; each
// open board handle is locked independently via Board.Lock/RLock, while
// Service itself only guards the registry of currently-open handles.
type Service struct {
	store Store

	mu    sync.Mutex
	open  map[string]*Board // boardID -> live read/write handle
}

// NewService constructs a board Service over the given persistence Store.
func NewService(store Store) *Service {
	return &Service{store: store, open: make(map[string]*Board)}
}

// CreateBoard allocates a new board and persists its initial draft.
func (s *Service) CreateBoard(ctx context.Context, id, name string) (*Board, error) {
	b := New(id, name)
	if err := s.Save(ctx, b); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.open[id] = b
	s.mu.Unlock()
	return b, nil
}

// OpenBoard returns a board handle. readOnly=false returns the single
// shared mutable handle (scoped by Board's internal lock); readOnly=true
// returns a freshly deserialized snapshot safe for concurrent reads
// without contending on the live handle's lock.
func (s *Service) OpenBoard(ctx context.Context, id string, readOnly bool) (*Board, error) {
	if !readOnly {
		s.mu.Lock()
		defer s.mu.Unlock()
		if b, ok := s.open[id]; ok {
			return b, nil
		}
		data, err := s.store.GetCurrent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open board %s: %w", id, err)
		}
		b, err := decode(data)
		if err != nil {
			return nil, err
		}
		s.open[id] = b
		return b, nil
	}

	data, err := s.store.GetCurrent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open board %s (read-only): %w", id, err)
	}
	return decode(data)
}

// GetVersions lists every immutable version snapshot recorded for a
// board.
func (s *Service) GetVersions(ctx context.Context, id string) ([]Version, error) {
	return s.store.ListVersions(ctx, id)
}

// OpenVersion decodes one immutable version snapshot directly, bypassing
// the live "current" draft handle entirely — the read path a release
// channel resolves to (flow/release.Registry.Resolve picks the Version,
// this turns it into a runnable Board) once a run targets anything other
// than the mutable draft.
func (s *Service) OpenVersion(ctx context.Context, id string, v Version) (*Board, error) {
	data, err := s.store.GetSnapshot(ctx, id, v)
	if err != nil {
		return nil, fmt.Errorf("open board %s version %s: %w", id, v, err)
	}
	return decode(data)
}

// CreateVersion materializes the board's current state under a new
// version tuple and persists both the immutable snapshot and the
// updated draft (whose Version field now points at the new tuple).
func (s *Service) CreateVersion(ctx context.Context, id string, kind VersionKind) (Version, error) {
	s.mu.Lock()
	b, ok := s.open[id]
	s.mu.Unlock()
	if !ok {
		opened, err := s.OpenBoard(ctx, id, false)
		if err != nil {
			return Version{}, err
		}
		b = opened
	}

	snap := b.CreateVersion(kind)

	data, err := encode(snap)
	if err != nil {
		return Version{}, err
	}
	if err := s.store.PutSnapshot(ctx, id, snap.Version, data); err != nil {
		return Version{}, err
	}
	if err := s.Save(ctx, b); err != nil {
		return Version{}, err
	}
	return snap.Version, nil
}

// Save persists the board's current (mutable) draft state.
func (s *Service) Save(ctx context.Context, b *Board) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	return s.store.PutCurrent(ctx, b.ID, data)
}

// DeleteBoard removes a board and all of its versions from the store.
func (s *Service) DeleteBoard(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.open, id)
	s.mu.Unlock()
	return s.store.DeleteBoard(ctx, id)
}

func encode(b *Board) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dto := snapshot{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Version:     b.Version,
		Stage:       b.Stage,
		LogLevel:    b.LogLevel,
		Nodes:       b.Nodes,
		Comments:    b.Comments,
		Variables:   b.Variables,
		Layers:      b.Layers,
	}
	return json.Marshal(dto)
}

func decode(data []byte) (*Board, error) {
	var dto snapshot
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode board snapshot: %w", err)
	}

	b := &Board{
		ID:          dto.ID,
		Name:        dto.Name,
		Description: dto.Description,
		Version:     dto.Version,
		Stage:       dto.Stage,
		LogLevel:    dto.LogLevel,
		Nodes:       dto.Nodes,
		Comments:    dto.Comments,
		Variables:   dto.Variables,
		Layers:      dto.Layers,
	}
	if b.Nodes == nil {
		b.Nodes = make(map[string]*node.Node)
	}
	if b.Comments == nil {
		b.Comments = make(map[string]*Comment)
	}
	if b.Variables == nil {
		b.Variables = make(map[string]*Variable)
	}
	if b.Layers == nil {
		b.Layers = make(map[string]*Layer)
	}
	return b, nil
}
