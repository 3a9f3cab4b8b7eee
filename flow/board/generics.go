package board

import "github.com/lyzr/flowengine/flow/pin"

// ResolveGenerics propagates a concrete type outward from startPinID
// across connections via breadth-first walk. Cycles are
// permitted: the visited set guarantees termination even when two
// Generic pins loop back through each other.
func (b *Board) ResolveGenerics(startPinID string, resolved pin.VariableType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveGenericsFromLocked(startPinID, resolved)
}

func (b *Board) resolveGenericsFromLocked(startPinID string, resolved pin.VariableType) error {
	start, ok := b.lookupPinLocked(startPinID)
	if !ok {
		return nil
	}

	visited := map[string]bool{startPinID: true}
	queue := []*pin.Pin{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.IsGeneric() {
			cur.DataType = resolved
		} else if cur.DataType != resolved {
			// A non-generic pin reached by the walk that disagrees with
			// the resolved type indicates an inconsistent substitution;
			// the caller (command validation) is expected to reject the
			// connection before it ever reaches FixPins, so we leave the
			// pin's declared type untouched here and stop walking past it.
			continue
		}

		for _, peerID := range cur.Connections {
			if visited[peerID] {
				continue
			}
			visited[peerID] = true
			if peer, ok := b.lookupPinLocked(peerID); ok && peer.IsGeneric() {
				queue = append(queue, peer)
			}
		}
	}

	return nil
}

// resolveAllGenericsLocked re-derives generic substitutions for every
// still-generic pin reachable from an already-resolved peer. Called by
// FixPins so that edits which reconnect a resolved pin to a generic one
// propagate without the caller having to name the starting pin.
func (b *Board) resolveAllGenericsLocked() error {
	for _, n := range b.Nodes {
		for _, p := range n.Pins {
			if p.IsGeneric() {
				continue
			}
			for _, peerID := range p.Connections {
				peer, ok := b.lookupPinLocked(peerID)
				if ok && peer.IsGeneric() {
					if err := b.resolveGenericsFromLocked(p.ID, p.DataType); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
