package board

import (
	"fmt"

	"github.com/lyzr/flowengine/flow/pin"
)

// Connect wires two pins together, enforcing opposite-direction and
// exec-to-exec/data-to-data compatibility, and that an input data pin
// accepts only one incoming connection. Output pins may fan out freely.
func (b *Board) Connect(pinA, pinB string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.lookupPinLocked(pinA)
	if !ok {
		return fmt.Errorf("connect: pin %q not found", pinA)
	}
	c, ok := b.lookupPinLocked(pinB)
	if !ok {
		return fmt.Errorf("connect: pin %q not found", pinB)
	}
	if !a.CanConnect(c) {
		return fmt.Errorf("connect: pins %q and %q are not connectable", pinA, pinB)
	}

	input := a
	if c.Direction == pin.DirectionInput {
		input = c
	}
	if !input.IsExec() && len(input.Connections) >= 1 {
		return fmt.Errorf("connect: input data pin %q already has an incoming connection", input.ID)
	}

	a.AddConnection(pinB)
	c.AddConnection(pinA)
	return nil
}

// Disconnect removes the edge between two pins, if present.
func (b *Board) Disconnect(pinA, pinB string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if a, ok := b.lookupPinLocked(pinA); ok {
		a.RemoveConnection(pinB)
	}
	if c, ok := b.lookupPinLocked(pinB); ok {
		c.RemoveConnection(pinA)
	}
	return nil
}
