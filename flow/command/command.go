// Package command implements the command log: reversible board
// mutations, grounded in an execute/undo command-object design
// and wired here to github.com/evanphx/json-patch/v5 so the node and
// pin-upsert commands also carry a replayable RFC 6902 patch for
// audit/sync transport.
package command

import (
	"context"
	"fmt"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/flowengine/flow/board"
)

// Command is a reversible board mutation. Execute
// and Undo must be inverses: Undo(Execute(b)) leaves b observably
// unchanged, which is exercised directly by the round-trip property
// tests in command_test.go.
type Command interface {
	// Execute applies the mutation to b, recording whatever prior state
	// Undo will need to restore.
	Execute(ctx context.Context, b *board.Board) error
	// Undo reverses a previously-executed Execute call. Calling Undo
	// without a prior Execute is a programming error.
	Undo(ctx context.Context, b *board.Board) error
	// Patch renders the mutation as an RFC 6902 JSON Patch document,
	// suitable for shipping to a client that mirrors board state
	// incrementally instead of re-fetching the whole snapshot. AddNode,
	// UpdateNode, RemoveNode and UpsertPin compute a real diff; RemovePin,
	// Connect, Disconnect and the variable and comment commands return an
	// empty patch.
	Patch() (jsonpatch.Patch, error)
}

// Log is the append-only, position-addressable history of commands
// applied to a single board handle. Undo/Redo move a cursor
// through the log rather than popping entries, so redo survives after
// an undo as long as no new command has been appended since.
type Log struct {
	mu       sync.Mutex
	board    *board.Board
	commands []Command
	cursor   int // number of commands currently applied, 0..len(commands)
}

// NewLog creates a command log bound to a single board handle.
func NewLog(b *board.Board) *Log {
	return &Log{board: b}
}

// Apply executes cmd against the bound board and appends it to the log,
// discarding any previously-undone tail (the conventional undo/redo
// branching rule: a fresh command after an undo prunes the redo branch).
func (l *Log) Apply(ctx context.Context, cmd Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := cmd.Execute(ctx, l.board); err != nil {
		return err
	}
	l.commands = append(l.commands[:l.cursor], cmd)
	l.cursor++

	if err := l.board.FixPins(); err != nil {
		return fmt.Errorf("apply: fix pins: %w", err)
	}
	return nil
}

// Undo reverses the most recently applied command, if any.
func (l *Log) Undo(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor == 0 {
		return fmt.Errorf("undo: nothing to undo")
	}
	l.cursor--
	if err := l.commands[l.cursor].Undo(ctx, l.board); err != nil {
		l.cursor++
		return err
	}
	return l.board.FixPins()
}

// Redo re-applies the most recently undone command, if any.
func (l *Log) Redo(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.commands) {
		return fmt.Errorf("redo: nothing to redo")
	}
	if err := l.commands[l.cursor].Execute(ctx, l.board); err != nil {
		return err
	}
	l.cursor++
	return l.board.FixPins()
}

// CanUndo/CanRedo report whether Undo/Redo would have any effect.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor > 0
}

func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.commands)
}

// History returns the commands currently applied, in application order.
func (l *Log) History() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Command, l.cursor)
	copy(out, l.commands[:l.cursor])
	return out
}
