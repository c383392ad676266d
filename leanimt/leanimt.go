// Package leanimt implements a binary, dynamic-depth incremental Merkle tree.
//
// The tree never hashes a zero constant: a node with no right sibling is
// promoted upward unchanged, so the depth is always ⌈log2(size)⌉ and every
// stored digest commits to inserted leaves only. The all-zero digest is
// reserved as the empty sentinel and rejected as a leaf value.
//
// The hash is injected as a stdlib hash.Hash whose Size fixes the digest
// width; github.com/consensys/gnark-crypto provides SNARK-friendly
// implementations.
package leanimt

import (
	"bytes"
	"errors"
	"hash"

	"github.com/consensys/gnark-merkle/logger"
)

var (
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	ErrLevelOutOfBounds = errors.New("level out of bounds")
	ErrEmptyLeaf        = errors.New("the zero digest is not a valid leaf")
	ErrEmptyLeaves      = errors.New("empty leaf batch")
	ErrLeafSize         = errors.New("leaf size does not match the hasher digest size")
	ErrBatchMismatch    = errors.New("duplicate index in update batch")
)

// Tree is a lean incremental Merkle tree. Level 0 holds the leaves; the top
// level holds the single root digest once any leaf exists.
type Tree struct {
	h     hash.Hash
	width int
	nodes [][][]byte
}

// LeafUpdate pairs a leaf index with its replacement digest for batch updates.
type LeafUpdate struct {
	Index int
	Leaf  []byte
}

// New builds a tree over the given hasher, optionally populated with initial
// leaves. The hasher's digest size fixes the leaf width.
func New(h hash.Hash, leaves [][]byte) (*Tree, error) {
	t := &Tree{
		h:     h,
		width: h.Size(),
		nodes: make([][][]byte, 1),
	}

	switch len(leaves) {
	case 0:
	case 1:
		if err := t.Insert(leaves[0]); err != nil {
			return nil, err
		}
	default:
		if err := t.InsertMany(leaves); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Size returns the number of leaves.
func (t *Tree) Size() int { return len(t.nodes[0]) }

// Depth returns the number of hashing levels. It is 0 while the tree holds at
// most one leaf.
func (t *Tree) Depth() int { return len(t.nodes) - 1 }

// Root returns the root digest; ok is false while the tree is empty.
func (t *Tree) Root() ([]byte, bool) {
	top := t.nodes[len(t.nodes)-1]
	if len(top) == 0 {
		return nil, false
	}
	return clone(top[0]), true
}

// Leaves returns the leaves in insertion order.
func (t *Tree) Leaves() [][]byte {
	leaves := make([][]byte, len(t.nodes[0]))
	for i, leaf := range t.nodes[0] {
		leaves[i] = clone(leaf)
	}
	return leaves
}

// GetLeaf returns the leaf at the given index.
func (t *Tree) GetLeaf(index int) ([]byte, error) {
	if index < 0 || index >= len(t.nodes[0]) {
		return nil, ErrIndexOutOfBounds
	}
	return clone(t.nodes[0][index]), nil
}

// GetNode returns the digest stored at the given level and index.
func (t *Tree) GetNode(level, index int) ([]byte, error) {
	if level < 0 || level >= len(t.nodes) {
		return nil, ErrLevelOutOfBounds
	}
	if index < 0 || index >= len(t.nodes[level]) {
		return nil, ErrIndexOutOfBounds
	}
	return clone(t.nodes[level][index]), nil
}

// IndexOf returns the index of the first leaf equal to the given digest.
func (t *Tree) IndexOf(leaf []byte) (int, bool) {
	for i, l := range t.nodes[0] {
		if bytes.Equal(l, leaf) {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether the given digest is a leaf of the tree.
func (t *Tree) Contains(leaf []byte) bool {
	_, ok := t.IndexOf(leaf)
	return ok
}

// Insert appends one leaf, updating the digests on the right spine of the
// tree. When the leaf count passes a power of two a new level is allocated
// and the previous root becomes the new root's left child, unhashed until a
// right sibling appears.
func (t *Tree) Insert(leaf []byte) error {
	if err := t.checkLeaf(leaf); err != nil {
		return err
	}

	depth := t.Depth()
	if t.Size()+1 > 1<<depth {
		t.nodes = append(t.nodes, nil)
		depth++
	}

	node := clone(leaf)
	index := t.Size()

	for level := 0; level <= depth; level++ {
		t.setNode(level, index, node)
		if index&1 == 1 {
			node = t.hashPair(t.nodes[level][index-1], node)
		}
		index >>= 1
	}

	t.nodes[depth] = [][]byte{node}
	return nil
}

// InsertMany appends the given leaves, then rebuilds every level above the
// first affected parent in a single sweep.
func (t *Tree) InsertMany(leaves [][]byte) error {
	if len(leaves) == 0 {
		return ErrEmptyLeaves
	}
	for _, leaf := range leaves {
		if err := t.checkLeaf(leaf); err != nil {
			return err
		}
	}

	startIndex := t.Size()
	for _, leaf := range leaves {
		t.nodes[0] = append(t.nodes[0], clone(leaf))
	}

	for t.Depth() < depthFor(t.Size()) {
		t.nodes = append(t.nodes, nil)
	}

	index := startIndex / 2
	for level := 0; level < t.Depth(); level++ {
		nbParents := (len(t.nodes[level]) + 1) / 2
		for parent := index; parent < nbParents; parent++ {
			left := 2 * parent
			var node []byte
			if left+1 < len(t.nodes[level]) {
				node = t.hashPair(t.nodes[level][left], t.nodes[level][left+1])
			} else {
				node = t.nodes[level][left]
			}
			t.setNode(level+1, parent, node)
		}
		index /= 2
	}

	log := logger.Logger()
	log.Debug().Int("leaves", len(leaves)).Int("size", t.Size()).Msg("leanimt batch insert")
	return nil
}

// Update replaces the leaf at the given index and recomputes its path.
// Levels where the path node has no right sibling propagate the digest
// unchanged.
func (t *Tree) Update(index int, leaf []byte) error {
	if index < 0 || index >= t.Size() {
		return ErrIndexOutOfBounds
	}
	if err := t.checkLeaf(leaf); err != nil {
		return err
	}

	node := clone(leaf)
	depth := t.Depth()

	for level := 0; level < depth; level++ {
		t.nodes[level][index] = node
		if index&1 == 1 {
			node = t.hashPair(t.nodes[level][index-1], node)
		} else if index+1 < len(t.nodes[level]) {
			node = t.hashPair(node, t.nodes[level][index+1])
		}
		index >>= 1
	}

	t.nodes[depth][0] = node
	return nil
}

// UpdateMany applies all leaf writes first, then recomputes each affected
// parent once per level. The result does not depend on the order of the
// batch; a duplicate index is rejected rather than resolved silently.
func (t *Tree) UpdateMany(updates []LeafUpdate) error {
	affected := make(map[int]struct{}, len(updates))
	for _, u := range updates {
		if u.Index < 0 || u.Index >= t.Size() {
			return ErrIndexOutOfBounds
		}
		if err := t.checkLeaf(u.Leaf); err != nil {
			return err
		}
		if _, dup := affected[u.Index]; dup {
			return ErrBatchMismatch
		}
		affected[u.Index] = struct{}{}
	}

	for _, u := range updates {
		t.nodes[0][u.Index] = clone(u.Leaf)
	}

	for level := 0; level < t.Depth(); level++ {
		parents := make(map[int]struct{}, len(affected))
		for index := range affected {
			parents[index/2] = struct{}{}
		}
		for parent := range parents {
			left := 2 * parent
			var node []byte
			if left+1 < len(t.nodes[level]) {
				node = t.hashPair(t.nodes[level][left], t.nodes[level][left+1])
			} else {
				node = t.nodes[level][left]
			}
			t.nodes[level+1][parent] = node
		}
		affected = parents
	}

	log := logger.Logger()
	log.Debug().Int("updates", len(updates)).Msg("leanimt batch update")
	return nil
}

func (t *Tree) checkLeaf(leaf []byte) error {
	if len(leaf) != t.width {
		return ErrLeafSize
	}
	for _, b := range leaf {
		if b != 0 {
			return nil
		}
	}
	return ErrEmptyLeaf
}

func (t *Tree) hashPair(left, right []byte) []byte {
	t.h.Reset()
	t.h.Write(left)
	t.h.Write(right)
	return t.h.Sum(nil)
}

func (t *Tree) setNode(level, index int, digest []byte) {
	if index < len(t.nodes[level]) {
		t.nodes[level][index] = digest
		return
	}
	t.nodes[level] = append(t.nodes[level], digest)
}

// depthFor returns ⌈log2 max(size,1)⌉.
func depthFor(size int) int {
	d := 0
	for 1<<d < size {
		d++
	}
	return d
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
