// Package boardstore implements flow/board.Store by pairing
// internal/db's Postgres version index with external/store's
// content-addressable blob storage -- the "which versions exist" /
// "where is the blob" split both packages' doc comments already
// describe, wired together here into the single Store flow/board.Service
// actually depends on.
package boardstore

import (
	"context"
	"fmt"

	"github.com/lyzr/flowengine/external/store"
	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/internal/db"
)

// Store implements board.Store on top of a blob Store and the Postgres
// version/current index.
type Store struct {
	blobs store.Store
	index *db.DB
}

func New(blobs store.Store, index *db.DB) *Store {
	return &Store{blobs: blobs, index: index}
}

func (s *Store) PutSnapshot(ctx context.Context, boardID string, v board.Version, data []byte) error {
	ref, err := s.blobs.Put(ctx, data, "application/json")
	if err != nil {
		return fmt.Errorf("boardstore: put snapshot blob: %w", err)
	}
	return s.index.PutVersionIndex(ctx, boardID, v[0], v[1], v[2], ref)
}

func (s *Store) GetSnapshot(ctx context.Context, boardID string, v board.Version) ([]byte, error) {
	rows, err := s.index.ListVersionIndex(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("boardstore: get snapshot: %w", err)
	}
	for _, row := range rows {
		if row.Major == v[0] && row.Minor == v[1] && row.Patch == v[2] {
			return s.blobs.Get(ctx, row.BlobRef)
		}
	}
	return nil, fmt.Errorf("boardstore: no snapshot for board %s version %s", boardID, v)
}

func (s *Store) ListVersions(ctx context.Context, boardID string) ([]board.Version, error) {
	rows, err := s.index.ListVersionIndex(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("boardstore: list versions: %w", err)
	}
	out := make([]board.Version, 0, len(rows))
	for _, row := range rows {
		out = append(out, board.Version{row.Major, row.Minor, row.Patch})
	}
	return out, nil
}

func (s *Store) PutCurrent(ctx context.Context, boardID string, data []byte) error {
	ref, err := s.blobs.Put(ctx, data, "application/json")
	if err != nil {
		return fmt.Errorf("boardstore: put current blob: %w", err)
	}
	return s.index.PutCurrentIndex(ctx, boardID, ref)
}

func (s *Store) GetCurrent(ctx context.Context, boardID string) ([]byte, error) {
	ref, err := s.index.GetCurrentIndex(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("boardstore: get current: %w", err)
	}
	return s.blobs.Get(ctx, ref)
}

func (s *Store) DeleteBoard(ctx context.Context, boardID string) error {
	return s.index.DeleteBoardIndex(ctx, boardID)
}
