// Package users implements the user-management external collaborator
// (events carry a `sub`/username the board may need
// attributes for — e.g. routing a ChatEvent reply to the right
// recipient). Grounded in cmd/orchestrator's auth middleware
// (cmd/orchestrator/middleware/auth.go), which establishes identity from
// an X-User-ID header and namespaces tags by it; here that same identity
// is used to key a Postgres-backed attribute lookup instead of a tag
// prefix.
package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory is the capability surface identity-aware nodes need:
// GetAttribute(sub, username, attribute).
type Directory interface {
	Name() string
	GetAttribute(ctx context.Context, sub, username, attribute string) (string, error)
}

// PostgresDirectory reads user attributes out of a flat
// user_attributes(sub, username, attribute, value) table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) Name() string { return "users.postgres" }

func (d *PostgresDirectory) GetAttribute(ctx context.Context, sub, username, attribute string) (string, error) {
	var value string
	err := d.pool.QueryRow(ctx,
		`SELECT value FROM user_attributes WHERE sub = $1 AND username = $2 AND attribute = $3`,
		sub, username, attribute,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("users: attribute %q for %s/%s: %w", attribute, sub, username, err)
	}
	return value, nil
}

// MemoryDirectory is an in-process reference implementation for tests
// and single-process deployments without Postgres.
type MemoryDirectory struct {
	attrs map[string]string // key: sub+"/"+username+"/"+attribute
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{attrs: make(map[string]string)}
}

func (d *MemoryDirectory) Name() string { return "users.memory" }

func (d *MemoryDirectory) Set(sub, username, attribute, value string) {
	d.attrs[key(sub, username, attribute)] = value
}

func (d *MemoryDirectory) GetAttribute(_ context.Context, sub, username, attribute string) (string, error) {
	v, ok := d.attrs[key(sub, username, attribute)]
	if !ok {
		return "", fmt.Errorf("users: attribute %q for %s/%s not found", attribute, sub, username)
	}
	return v, nil
}

func key(sub, username, attribute string) string { return sub + "/" + username + "/" + attribute }
