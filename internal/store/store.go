// Package store holds the in-memory annotation set for one open document.
// All mutation goes through the history engine; render and persistence
// read consistent snapshots.
package store

import (
	"sort"
	"sync"

	"pdfmark/internal/annot"
)

// Store maps annotation ids to records, indexed by page. Deletions are
// tombstones until Compact so undo can resurrect without a recovery path.
type Store struct {
	mu     sync.RWMutex
	annots map[string]*annot.Annotation
	pages  map[int][]string
	seq    uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		annots: make(map[string]*annot.Annotation),
		pages:  make(map[int][]string),
	}
}

// NextSeq returns the next creation sequence number. Sequence numbers are
// logical, not wall-clock, so persisted ordering is deterministic.
func (s *Store) NextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Insert adds a copy of a to the store. An annotation with Seq 0 is
// assigned the next sequence number. Inserting an id that already exists
// is a no-op returning false: ids are never reassigned.
func (s *Store) Insert(a *annot.Annotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.annots[a.ID]; ok {
		return false
	}

	c := a.Clone()
	if c.Seq == 0 {
		s.seq++
		c.Seq = s.seq
	} else if c.Seq > s.seq {
		s.seq = c.Seq
	}
	if c.ModSeq < c.Seq {
		c.ModSeq = c.Seq
	}

	s.annots[c.ID] = c
	s.pages[c.Page] = append(s.pages[c.Page], c.ID)
	return true
}

// Remove soft-deletes the annotation. Unknown or already-deleted ids are a
// benign no-op: undo/redo interleavings may double-delete and must not
// fail.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.annots[id]
	if !ok || a.Deleted {
		return false
	}
	a.Deleted = true
	s.seq++
	a.ModSeq = s.seq
	return true
}

// Restore clears the tombstone on a soft-deleted annotation.
func (s *Store) Restore(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.annots[id]
	if !ok || !a.Deleted {
		return false
	}
	a.Deleted = false
	s.seq++
	a.ModSeq = s.seq
	return true
}

// Update applies mutate to the stored annotation. The id, page and
// sequence number are pinned; a mutator cannot change identity.
func (s *Store) Update(id string, mutate func(*annot.Annotation)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.annots[id]
	if !ok {
		return false
	}

	keepID, keepPage, keepSeq := a.ID, a.Page, a.Seq
	mutate(a)
	a.ID, a.Page, a.Seq = keepID, keepPage, keepSeq

	s.seq++
	a.ModSeq = s.seq
	return true
}

// Replace swaps the stored record for a copy of a, preserving identity
// fields. Used by Modify command apply/invert, which capture whole
// snapshots.
func (s *Store) Replace(a *annot.Annotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.annots[a.ID]
	if !ok {
		return false
	}

	c := a.Clone()
	c.Page = old.Page
	c.Seq = old.Seq
	s.seq++
	c.ModSeq = s.seq
	s.annots[a.ID] = c
	return true
}

// Get returns a copy of the annotation, deleted or not.
func (s *Store) Get(id string) (*annot.Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.annots[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Page returns the live annotations of a page sorted by z-index, ties
// broken by creation sequence so later creations draw on top.
func (s *Store) Page(pageIndex int) []*annot.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageLocked(pageIndex)
}

func (s *Store) pageLocked(pageIndex int) []*annot.Annotation {
	out := []*annot.Annotation{}
	for _, id := range s.pages[pageIndex] {
		a := s.annots[id]
		if a != nil && !a.Deleted {
			out = append(out, a.Clone())
		}
	}
	sortAnnots(out)
	return out
}

// Snapshot is an alias of Page that exists to make render call sites
// explicit: the returned slice is an immutable point-in-time copy, safe to
// draw from while edits continue.
func (s *Store) Snapshot(pageIndex int) []*annot.Annotation {
	return s.Page(pageIndex)
}

// Live returns every live annotation across all pages in persistence order
// (page, then z-index, then creation sequence).
func (s *Store) Live() []*annot.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*annot.Annotation{}
	for _, a := range s.annots {
		if !a.Deleted {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return lessZSeq(out[i], out[j])
	})
	return out
}

// Compact permanently drops tombstoned records. Called at save time or on
// an explicit history clear, never during normal editing.
func (s *Store) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, a := range s.annots {
		if !a.Deleted {
			continue
		}
		delete(s.annots, id)
		s.pages[a.Page] = removeID(s.pages[a.Page], id)
		dropped++
	}
	return dropped
}

// Len returns the number of live annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.annots {
		if !a.Deleted {
			n++
		}
	}
	return n
}

// Pages returns the page indexes that currently hold live annotations, in
// ascending order.
func (s *Store) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []int{}
	for page, ids := range s.pages {
		for _, id := range ids {
			if a := s.annots[id]; a != nil && !a.Deleted {
				out = append(out, page)
				break
			}
		}
	}
	sort.Ints(out)
	return out
}

func sortAnnots(as []*annot.Annotation) {
	sort.SliceStable(as, func(i, j int) bool {
		return lessZSeq(as[i], as[j])
	})
}

func lessZSeq(a, b *annot.Annotation) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	return a.Seq < b.Seq
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
