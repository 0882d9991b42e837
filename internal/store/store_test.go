package store

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfmark/internal/annot"
)

func note(page int) *annot.Annotation {
	return &annot.Annotation{
		ID:     annot.NewID(),
		Page:   page,
		Kind:   annot.Note,
		Anchor: r2.Point{X: 10, Y: 10},
		Style:  annot.DefaultStyle(),
	}
}

func TestInsertAssignsSeq(t *testing.T) {
	s := New()
	a := note(0)
	require.True(t, s.Insert(a))

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Seq)

	b := note(0)
	require.True(t, s.Insert(b))
	got, _ = s.Get(b.ID)
	assert.Equal(t, uint64(2), got.Seq)
}

func TestInsertDuplicateIDIsNoOp(t *testing.T) {
	s := New()
	a := note(0)
	require.True(t, s.Insert(a))

	dup := a.Clone()
	dup.Anchor = r2.Point{X: 99, Y: 99}
	assert.False(t, s.Insert(dup))

	got, _ := s.Get(a.ID)
	assert.Equal(t, 10.0, got.Anchor.X)
}

func TestInsertCopies(t *testing.T) {
	s := New()
	a := note(0)
	require.True(t, s.Insert(a))

	a.Anchor.X = 500
	got, _ := s.Get(a.ID)
	assert.Equal(t, 10.0, got.Anchor.X)
}

func TestRemoveRestoreAreBenign(t *testing.T) {
	s := New()
	a := note(0)
	s.Insert(a)

	assert.True(t, s.Remove(a.ID))
	assert.False(t, s.Remove(a.ID), "double delete is a no-op")
	assert.False(t, s.Remove("no-such-id"))

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Page(0))

	assert.True(t, s.Restore(a.ID))
	assert.False(t, s.Restore(a.ID))
	assert.Equal(t, 1, s.Len())
}

func TestPageOrderingZThenSeq(t *testing.T) {
	s := New()
	a := note(0)
	b := note(0)
	c := note(0)
	c.Z = -1
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	got := s.Page(0)
	require.Len(t, got, 3)
	assert.Equal(t, c.ID, got[0].ID, "lowest z draws first")
	assert.Equal(t, a.ID, got[1].ID, "ties broken by creation order")
	assert.Equal(t, b.ID, got[2].ID)
}

func TestUpdatePinsIdentity(t *testing.T) {
	s := New()
	a := note(3)
	s.Insert(a)

	ok := s.Update(a.ID, func(x *annot.Annotation) {
		x.ID = "hijack"
		x.Page = 7
		x.Seq = 999
		x.Z = 5
	})
	require.True(t, ok)

	got, found := s.Get(a.ID)
	require.True(t, found)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 5, got.Z)

	assert.False(t, s.Update("no-such-id", func(*annot.Annotation) {}))
}

func TestReplacePreservesIdentity(t *testing.T) {
	s := New()
	a := note(2)
	s.Insert(a)
	stored, _ := s.Get(a.ID)

	repl := stored.Clone()
	repl.Text = "edited"
	repl.Page = 9
	require.True(t, s.Replace(repl))

	got, _ := s.Get(a.ID)
	assert.Equal(t, "edited", got.Text)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, stored.Seq, got.Seq)
	assert.Greater(t, got.ModSeq, stored.ModSeq)
}

func TestCompactDropsTombstonesOnly(t *testing.T) {
	s := New()
	a := note(0)
	b := note(1)
	s.Insert(a)
	s.Insert(b)
	s.Remove(a.ID)

	assert.Equal(t, 1, s.Compact())
	_, ok := s.Get(a.ID)
	assert.False(t, ok)
	_, ok = s.Get(b.ID)
	assert.True(t, ok)

	assert.False(t, s.Restore(a.ID), "compacted record is gone for good")
}

func TestLiveOrderedByPage(t *testing.T) {
	s := New()
	a := note(5)
	b := note(0)
	c := note(5)
	c.Z = -2
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)
	s.Remove(b.ID)

	got := s.Live()
	require.Len(t, got, 2)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)

	assert.Equal(t, []int{5}, s.Pages())
}

func TestSeqNeverReused(t *testing.T) {
	s := New()
	a := note(0)
	a.Seq = 40
	s.Insert(a)

	b := note(0)
	s.Insert(b)
	got, _ := s.Get(b.ID)
	assert.Equal(t, uint64(41), got.Seq, "counter jumps past loaded records")
}
