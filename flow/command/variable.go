package command

import (
	"context"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/flowengine/flow/board"
)

// UpsertVariable adds or replaces a board variable (grounded in
// UpsertVariableCommand). Non-editable variables reject the upsert
// entirely, matching the original's guard.
type UpsertVariable struct {
	Variable *board.Variable

	oldVariable *board.Variable
	existed     bool
}

func NewUpsertVariable(v *board.Variable) *UpsertVariable {
	return &UpsertVariable{Variable: v}
}

func (c *UpsertVariable) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()

	old, existed := b.Variables[c.Variable.ID]
	if existed && !old.Editable {
		return fmt.Errorf("upsert variable: %q is not editable", c.Variable.ID)
	}
	c.oldVariable, c.existed = old, existed
	b.Variables[c.Variable.ID] = c.Variable
	return nil
}

func (c *UpsertVariable) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	delete(b.Variables, c.Variable.ID)
	if c.existed {
		b.Variables[c.oldVariable.ID] = c.oldVariable
	}
	return nil
}

func (c *UpsertVariable) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}

// RemoveVariable deletes a board variable by id, refusing to remove one
// marked non-editable.
type RemoveVariable struct {
	VariableID string

	removed *board.Variable
	existed bool
}

func NewRemoveVariable(id string) *RemoveVariable {
	return &RemoveVariable{VariableID: id}
}

func (c *RemoveVariable) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()

	v, existed := b.Variables[c.VariableID]
	if existed && !v.Editable {
		return fmt.Errorf("remove variable: %q is not editable", c.VariableID)
	}
	c.removed, c.existed = v, existed
	delete(b.Variables, c.VariableID)
	return nil
}

func (c *RemoveVariable) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	if c.existed {
		b.Variables[c.removed.ID] = c.removed
	}
	return nil
}

func (c *RemoveVariable) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}
