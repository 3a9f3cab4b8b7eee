package command

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/node"
)

// AddNode inserts a new node onto the board (grounded in AddNodeCommand:
// node and pin ids are re-minted on construction so that pasting or
// templating a node never collides with an existing id).
type AddNode struct {
	Node         *node.Node
	CurrentLayer *string

	before []byte // nil before Execute; board-wide JSON for Patch()
	after  []byte
}

// NewAddNode clones n, assigning it and every one of its pins a fresh id.
func NewAddNode(n *node.Node, currentLayer *string) *AddNode {
	return &AddNode{Node: remintNode(n), CurrentLayer: currentLayer}
}

func remintNode(n *node.Node) *node.Node {
	clone := node.NewNode(uuid.NewString(), n.Name, n.FriendlyName)
	clone.Description = n.Description
	clone.Category = n.Category
	clone.Icon = n.Icon
	clone.Coordinates = n.Coordinates
	clone.Start = n.Start
	clone.LongRunning = n.LongRunning
	clone.EventCallback = n.EventCallback
	clone.Delegated = n.Delegated

	for _, pid := range n.PinOrder {
		p := *n.Pins[pid]
		p.ID = uuid.NewString()
		p.Connections = nil // a freshly minted node starts unwired
		clone.AddPin(&p)
	}
	return clone
}

func (c *AddNode) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	c.before, _ = json.Marshal(b.Nodes)
	if c.CurrentLayer != nil {
		c.Node.Layer = c.CurrentLayer
	}
	b.Nodes[c.Node.ID] = c.Node
	c.after, _ = json.Marshal(b.Nodes)
	return nil
}

func (c *AddNode) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	delete(b.Nodes, c.Node.ID)
	return nil
}

func (c *AddNode) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.CreatePatch(c.before, c.after)
}

// UpdateNode replaces a node wholesale, recording whatever was there
// before so Undo can restore it (or remove the node entirely, if it did
// not previously exist).
type UpdateNode struct {
	Node    *node.Node
	oldNode *node.Node
	existed bool

	before []byte
	after  []byte
}

func NewUpdateNode(n *node.Node) *UpdateNode {
	return &UpdateNode{Node: n}
}

func (c *UpdateNode) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	c.before, _ = json.Marshal(b.Nodes)
	c.oldNode, c.existed = b.Nodes[c.Node.ID]
	b.Nodes[c.Node.ID] = c.Node
	c.after, _ = json.Marshal(b.Nodes)
	return nil
}

func (c *UpdateNode) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	if c.existed {
		b.Nodes[c.Node.ID] = c.oldNode
	} else {
		delete(b.Nodes, c.Node.ID)
	}
	return nil
}

func (c *UpdateNode) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.CreatePatch(c.before, c.after)
}

// RemoveNode deletes a node and, transitively, every connection pointing
// at one of its pins (enforced by the following FixPins pass in Log.Apply).
type RemoveNode struct {
	NodeID  string
	removed *node.Node
	existed bool

	before []byte
	after  []byte
}

func NewRemoveNode(id string) *RemoveNode {
	return &RemoveNode{NodeID: id}
}

func (c *RemoveNode) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	c.before, _ = json.Marshal(b.Nodes)
	c.removed, c.existed = b.Nodes[c.NodeID]
	if !c.existed {
		return fmt.Errorf("remove node: %q not found", c.NodeID)
	}
	delete(b.Nodes, c.NodeID)
	c.after, _ = json.Marshal(b.Nodes)
	return nil
}

func (c *RemoveNode) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	if c.existed {
		b.Nodes[c.NodeID] = c.removed
	}
	return nil
}

func (c *RemoveNode) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.CreatePatch(c.before, c.after)
}
