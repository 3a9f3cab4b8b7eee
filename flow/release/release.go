// Package release implements versioning & release routing:
// `Release`/`CanaryRelease` named pointers from a channel to a specific
// immutable board version, plus weight-based canary routing between a
// stable and canary version (ReleaseNotes, weight, frozen
// variables/config, active flag, release_version tuple); the move-tag-
// atomically operation is the direct generalization of
// cmd/orchestrator's tag/artifact model (cmd/orchestrator/service/tag.go)
// — a "tag" there (a named pointer to a CAS artifact id) is this
// package's "release channel" (a named pointer to a board version), so
// Registry.Activate is the same atomic pointer swap that model calls
// "moving a tag".
package release

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/value"
)

// Notes is free-form release documentation.
type Notes struct {
	Summary   string
	Changelog string
}

// Release is a named, mutable pointer from a channel (e.g. "prod") to an
// immutable board version, with frozen variables/config captured at
// release time so later board edits don't retroactively change a live
// release's behavior.
type Release struct {
	Channel   string
	BoardID   string
	Version   board.Version
	Notes     Notes
	Variables map[string]value.Value
	Config    []byte
	Active    bool
}

// CanaryRelease pairs a stable Release with a canary candidate version
// and a traffic weight in [0,1] — the fraction of invocations routed to
// the canary.
type CanaryRelease struct {
	Stable       Release
	CanaryVer    board.Version
	Weight       float32
	CanaryActive bool
}

// Registry tracks the current Release/CanaryRelease per (boardID,
// channel), guarded by a single mutex — release changes are rare and
// administrative, unlike the per-run hot path in flow/scheduler.
type Registry struct {
	mu       sync.RWMutex
	releases map[string]*Release
	canaries map[string]*CanaryRelease
}

func NewRegistry() *Registry {
	return &Registry{
		releases: make(map[string]*Release),
		canaries: make(map[string]*CanaryRelease),
	}
}

func key(boardID, channel string) string { return boardID + "/" + channel }

// Activate atomically points channel at version for boardID — the
// engine's analogue of cmd/orchestrator's "move tag" operation: the previous
// Release for this channel, if any, is simply overwritten, since
// Release itself carries no history (flow/board.Store's version index
// is the source of truth for what existed before).
func (r *Registry) Activate(ctx context.Context, rel Release) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel.Active = true
	r.releases[key(rel.BoardID, rel.Channel)] = &rel
	return nil
}

// Deactivate removes the named channel's release, so Resolve will fail
// until another Activate call sets a new target.
func (r *Registry) Deactivate(boardID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.releases, key(boardID, channel))
	delete(r.canaries, key(boardID, channel))
}

// SetCanary installs a canary candidate on top of an already-active
// stable release for the channel.
func (r *Registry) SetCanary(boardID, channel string, canaryVer board.Version, weight float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stable, ok := r.releases[key(boardID, channel)]
	if !ok {
		return fmt.Errorf("release: no active release for %s/%s to canary against", boardID, channel)
	}
	r.canaries[key(boardID, channel)] = &CanaryRelease{
		Stable:       *stable,
		CanaryVer:    canaryVer,
		Weight:       weight,
		CanaryActive: true,
	}
	return nil
}

// ClearCanary removes a channel's canary, routing all traffic back to
// the stable release.
func (r *Registry) ClearCanary(boardID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.canaries, key(boardID, channel))
}

// Resolve picks the board version an invocation of (boardID, channel)
// should run against. When a canary is active, routing
// is deterministic by sticky key: if
// idempotencyKey is non-empty, route deterministically by hashing it
// (the same key always lands on the same side, so retries of one
// logical invocation never flap between stable and canary); otherwise
// fall back to a uniform random draw weighted by Weight.
func (r *Registry) Resolve(boardID, channel string, idempotencyKey string) (board.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canary, hasCanary := r.canaries[key(boardID, channel)]
	if hasCanary && canary.CanaryActive {
		if routeToCanary(canary.Weight, idempotencyKey) {
			return canary.CanaryVer, nil
		}
		return canary.Stable.Version, nil
	}

	rel, ok := r.releases[key(boardID, channel)]
	if !ok || !rel.Active {
		return board.Version{}, fmt.Errorf("release: no active release for %s/%s", boardID, channel)
	}
	return rel.Version, nil
}

// ResolveRelease returns the full Release record (variables/config
// included) a scheduler run needs, on top of the routed version from
// Resolve.
func (r *Registry) ResolveRelease(boardID, channel string) (Release, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.releases[key(boardID, channel)]
	if !ok || !rel.Active {
		return Release{}, fmt.Errorf("release: no active release for %s/%s", boardID, channel)
	}
	return *rel, nil
}

func routeToCanary(weight float32, idempotencyKey string) bool {
	if idempotencyKey != "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(idempotencyKey))
		frac := float32(h.Sum32()%10000) / 10000.0
		return frac < weight
	}
	return rand.Float32() < weight
}
