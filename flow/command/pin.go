package command

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/pin"
)

// UpsertPin adds or replaces a pin on a node (grounded in
// UpsertPinCommand). FixPins runs after every Log.Apply, so callers
// never need to call it directly.
type UpsertPin struct {
	NodeID string
	Pin    *pin.Pin

	oldPin  *pin.Pin
	existed bool

	before []byte
	after  []byte
}

func NewUpsertPin(nodeID string, p *pin.Pin) *UpsertPin {
	return &UpsertPin{NodeID: nodeID, Pin: p}
}

func (c *UpsertPin) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	n, ok := b.Nodes[c.NodeID]
	if !ok {
		return fmt.Errorf("upsert pin: node %q not found", c.NodeID)
	}
	c.before, _ = json.Marshal(n.Pins)
	c.oldPin, c.existed = n.Pins[c.Pin.ID]
	n.AddPin(c.Pin)
	c.after, _ = json.Marshal(n.Pins)
	return nil
}

func (c *UpsertPin) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	n, ok := b.Nodes[c.NodeID]
	if !ok {
		return fmt.Errorf("undo upsert pin: node %q not found", c.NodeID)
	}
	if c.existed {
		n.AddPin(c.oldPin)
	} else {
		n.RemovePin(c.Pin.ID)
	}
	return nil
}

func (c *UpsertPin) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.CreatePatch(c.before, c.after)
}

// RemovePin deletes a pin from a node by id.
type RemovePin struct {
	NodeID string
	PinID  string

	removed *pin.Pin
	existed bool
}

func NewRemovePin(nodeID, pinID string) *RemovePin {
	return &RemovePin{NodeID: nodeID, PinID: pinID}
}

func (c *RemovePin) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	n, ok := b.Nodes[c.NodeID]
	if !ok {
		return fmt.Errorf("remove pin: node %q not found", c.NodeID)
	}
	c.removed, c.existed = n.Pins[c.PinID]
	n.RemovePin(c.PinID)
	return nil
}

func (c *RemovePin) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	n, ok := b.Nodes[c.NodeID]
	if !ok || !c.existed {
		return nil
	}
	n.AddPin(c.removed)
	return nil
}

func (c *RemovePin) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}

// Connect wires two pins together via board.Board.Connect.
type Connect struct {
	PinA, PinB string
}

func NewConnect(a, b string) *Connect { return &Connect{PinA: a, PinB: b} }

func (c *Connect) Execute(_ context.Context, b *board.Board) error {
	return b.Connect(c.PinA, c.PinB)
}

func (c *Connect) Undo(_ context.Context, b *board.Board) error {
	return b.Disconnect(c.PinA, c.PinB)
}

func (c *Connect) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}

// Disconnect removes an existing edge between two pins.
type Disconnect struct {
	PinA, PinB string
}

func NewDisconnect(a, b string) *Disconnect { return &Disconnect{PinA: a, PinB: b} }

func (c *Disconnect) Execute(_ context.Context, b *board.Board) error {
	return b.Disconnect(c.PinA, c.PinB)
}

func (c *Disconnect) Undo(_ context.Context, b *board.Board) error {
	return b.Connect(c.PinA, c.PinB)
}

func (c *Disconnect) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}
