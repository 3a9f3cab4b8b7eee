package command

import (
	"context"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/flowengine/flow/board"
)

// UpsertComment adds or replaces a canvas comment (grounded in
// UpsertCommentCommand).
type UpsertComment struct {
	Comment *board.Comment

	oldComment *board.Comment
	existed    bool
}

func NewUpsertComment(c *board.Comment) *UpsertComment {
	return &UpsertComment{Comment: c}
}

func (c *UpsertComment) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	old, existed := b.Comments[c.Comment.ID]
	c.oldComment, c.existed = old, existed
	b.Comments[c.Comment.ID] = c.Comment
	return nil
}

func (c *UpsertComment) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	delete(b.Comments, c.Comment.ID)
	if c.existed {
		b.Comments[c.oldComment.ID] = c.oldComment
	}
	return nil
}

func (c *UpsertComment) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}

// RemoveComment deletes a canvas comment by id.
type RemoveComment struct {
	CommentID string

	removed *board.Comment
	existed bool
}

func NewRemoveComment(id string) *RemoveComment {
	return &RemoveComment{CommentID: id}
}

func (c *RemoveComment) Execute(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	c.removed, c.existed = b.Comments[c.CommentID]
	delete(b.Comments, c.CommentID)
	return nil
}

func (c *RemoveComment) Undo(_ context.Context, b *board.Board) error {
	b.Lock()
	defer b.Unlock()
	if c.existed {
		b.Comments[c.removed.ID] = c.removed
	}
	return nil
}

func (c *RemoveComment) Patch() (jsonpatch.Patch, error) {
	return jsonpatch.Patch{}, nil
}
