// Package history records reversible edit commands against the annotation
// store and provides undo/redo. It is the only writer of the store during a
// session.
package history

import (
	"fmt"

	"pdfmark/internal/annot"
	"pdfmark/internal/store"
)

// Command is one undoable edit. Commands are immutable once recorded and
// carry enough captured state to apply and to exactly invert themselves
// without re-deriving anything from the store.
type Command interface {
	Apply(*store.Store)
	Invert(*store.Store)
	String() string
}

// Create inserts a new annotation. The full payload is captured so redo
// after a save-time compaction can re-insert it.
type Create struct {
	a *annot.Annotation
}

// NewCreate captures a copy of a.
func NewCreate(a *annot.Annotation) Create {
	return Create{a: a.Clone()}
}

func (c Create) Apply(s *store.Store) {
	if !s.Insert(c.a) {
		// Already present as a tombstone from a prior undo.
		s.Restore(c.a.ID)
	}
}

func (c Create) Invert(s *store.Store) {
	s.Remove(c.a.ID)
}

func (c Create) String() string {
	return fmt.Sprintf("create %s %s p%d", c.a.Kind, c.a.ID, c.a.Page)
}

// Delete soft-deletes an annotation. The payload is captured at
// construction so undo can resurrect it even after a compaction dropped
// the tombstone.
type Delete struct {
	a *annot.Annotation
}

// NewDelete captures a copy of the annotation being deleted.
func NewDelete(a *annot.Annotation) Delete {
	return Delete{a: a.Clone()}
}

func (d Delete) Apply(s *store.Store) {
	s.Remove(d.a.ID)
}

func (d Delete) Invert(s *store.Store) {
	if !s.Restore(d.a.ID) {
		s.Insert(d.a)
	}
}

func (d Delete) String() string {
	return fmt.Sprintf("delete %s %s p%d", d.a.Kind, d.a.ID, d.a.Page)
}

// Modify replaces an annotation's content. Old and new snapshots are both
// captured at construction time.
type Modify struct {
	old *annot.Annotation
	new *annot.Annotation
}

// NewModify captures copies of the before and after states. The two must
// refer to the same annotation id.
func NewModify(old, new *annot.Annotation) (Modify, error) {
	if old.ID != new.ID {
		return Modify{}, fmt.Errorf("modify id mismatch: %s vs %s", old.ID, new.ID)
	}
	return Modify{old: old.Clone(), new: new.Clone()}, nil
}

func (m Modify) Apply(s *store.Store) {
	s.Replace(m.new)
}

func (m Modify) Invert(s *store.Store) {
	s.Replace(m.old)
}

func (m Modify) String() string {
	return fmt.Sprintf("modify %s %s", m.new.Kind, m.new.ID)
}

// Reorder changes an annotation's z-index.
type Reorder struct {
	id   string
	oldZ int
	newZ int
}

// NewReorder records a z-index change.
func NewReorder(id string, oldZ, newZ int) Reorder {
	return Reorder{id: id, oldZ: oldZ, newZ: newZ}
}

func (r Reorder) Apply(s *store.Store) {
	s.Update(r.id, func(a *annot.Annotation) { a.Z = r.newZ })
}

func (r Reorder) Invert(s *store.Store) {
	s.Update(r.id, func(a *annot.Annotation) { a.Z = r.oldZ })
}

func (r Reorder) String() string {
	return fmt.Sprintf("reorder %s %d->%d", r.id, r.oldZ, r.newZ)
}

// Stack is the per-session command history. The cursor separates applied
// commands (undoable, to its left) from unapplied ones (redoable, to its
// right).
type Stack struct {
	store  *store.Store
	cmds   []Command
	cursor int
}

// NewStack binds a history to its store. One stack per document session.
func NewStack(s *store.Store) *Stack {
	return &Stack{store: s}
}

// Execute applies cmd and records it. Any redo tail is discarded: a fresh
// edit after an undo forgets the undone future.
func (h *Stack) Execute(cmd Command) {
	cmd.Apply(h.store)
	h.cmds = append(h.cmds[:h.cursor], cmd)
	h.cursor = len(h.cmds)
}

// Undo reverts the command left of the cursor. Returns false at the start
// of history.
func (h *Stack) Undo() bool {
	if h.cursor == 0 {
		return false
	}
	h.cursor--
	h.cmds[h.cursor].Invert(h.store)
	return true
}

// Redo re-applies the command at the cursor. Returns false at the end of
// history.
func (h *Stack) Redo() bool {
	if h.cursor == len(h.cmds) {
		return false
	}
	h.cmds[h.cursor].Apply(h.store)
	h.cursor++
	return true
}

// CanUndo reports whether Undo would do anything.
func (h *Stack) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether Redo would do anything.
func (h *Stack) CanRedo() bool { return h.cursor < len(h.cmds) }

// Len returns the number of recorded commands, applied or not.
func (h *Stack) Len() int { return len(h.cmds) }

// Cursor returns the undo/redo boundary position.
func (h *Stack) Cursor() int { return h.cursor }

// Clear drops the whole history and compacts the store. Resurrection via
// undo is impossible afterwards, so the tombstones can go too.
func (h *Stack) Clear() {
	h.cmds = nil
	h.cursor = 0
	h.store.Compact()
}
