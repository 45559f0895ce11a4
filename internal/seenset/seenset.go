// Package seenset tracks the (source block, encoding symbol ID) pairs a
// fountain decoder has already fed to its Codec, so duplicate symbols
// can be rejected in O(log n) without a second pass over a slice.
//
// It is backed by github.com/google/btree rather than a plain map so
// that Ascend can walk the seen set in deterministic key order (ESI
// order within a block) instead of Go's randomized map iteration. The
// stream decoder itself only uses Add for deduplication.
package seenset

import "github.com/google/btree"

// Key packs a source block number and a 24-bit encoding symbol ID into a
// single ordered key.
func Key(sourceBlockNumber uint8, esi uint32) uint32 {
	return uint32(sourceBlockNumber)<<24 | (esi & 0x00FFFFFF)
}

type item uint32

func (a item) Less(than btree.Item) bool { return a < than.(item) }

// Set is a B-tree-backed set of packed (block, esi) keys.
type Set struct {
	tree *btree.BTree
}

// New returns an empty Set with a degree tuned for the small-ish
// (tens of thousands of symbols) working sets this transport sees.
func New() *Set {
	return &Set{tree: btree.New(32)}
}

// Add inserts key if absent and reports whether it was newly added.
func (s *Set) Add(key uint32) bool {
	it := item(key)
	if s.tree.Has(it) {
		return false
	}
	s.tree.ReplaceOrInsert(it)
	return true
}

// Has reports whether key is already present.
func (s *Set) Has(key uint32) bool {
	return s.tree.Has(item(key))
}

// Len returns the number of distinct keys seen so far.
func (s *Set) Len() int {
	return s.tree.Len()
}

// Ascend walks the set in ascending key order, stopping early if fn
// returns false.
func (s *Set) Ascend(fn func(key uint32) bool) {
	s.tree.Ascend(func(i btree.Item) bool {
		return fn(uint32(i.(item)))
	})
}
