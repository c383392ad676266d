// Package imt implements a fixed-depth, fixed-arity incremental Merkle tree.
//
// The tree is parameterized over the hash function and over the digest type;
// any comparable type can serve as a digest. Empty leaf slots take a
// configurable zero value, whose per-level hashes are precomputed once at
// construction.
package imt

import (
	"errors"
	"math"

	"github.com/consensys/gnark-merkle/logger"
)

var (
	ErrDepthOutOfRange  = errors.New("tree depth must be between 1 and 32")
	ErrArityTooSmall    = errors.New("tree arity must be at least 2")
	ErrTreeIsFull       = errors.New("the tree cannot contain more than arity^depth leaves")
	ErrIndexOutOfBounds = errors.New("the leaf does not exist in this tree")
)

// Hash maps an ordered list of child digests to their parent digest. It must
// be deterministic and pure; the tree never calls it concurrently.
type Hash[N comparable] func(children []N) N

// Tree is a fixed-depth, fixed-arity incremental Merkle tree.
//
// Level 0 holds the leaves in insertion order, level depth holds the root.
// Only populated slots are stored; absent children hash as the zero value of
// their level.
type Tree[N comparable] struct {
	hash     Hash[N]
	depth    int
	arity    int
	capacity int
	zeroes   []N   // depth+1 entries, zeroes[0] is the leaf zero value
	nodes    [][]N // depth+1 levels
}

// LeafUpdate pairs a leaf index with its replacement value for batch updates.
type LeafUpdate[N comparable] struct {
	Index int
	Leaf  N
}

// New builds a tree of the given depth and arity, populated with the initial
// leaves. Absent leaf slots hash as zero.
func New[N comparable](hash Hash[N], depth, arity int, zero N, leaves []N) (*Tree[N], error) {
	if depth < 1 || depth > 32 {
		return nil, ErrDepthOutOfRange
	}
	if arity < 2 {
		return nil, ErrArityTooSmall
	}

	t := &Tree[N]{
		hash:     hash,
		depth:    depth,
		arity:    arity,
		capacity: pow(arity, depth),
		zeroes:   make([]N, 0, depth+1),
		nodes:    make([][]N, depth+1),
	}
	if len(leaves) > t.capacity {
		return nil, ErrTreeIsFull
	}

	z := zero
	for level := 0; level <= depth; level++ {
		t.zeroes = append(t.zeroes, z)
		if level < depth {
			children := make([]N, arity)
			for i := range children {
				children[i] = z
			}
			z = hash(children)
		}
	}

	t.nodes[0] = append(t.nodes[0], leaves...)

	for level := 0; level < depth; level++ {
		nbParents := ceilDiv(len(t.nodes[level]), arity)
		for index := 0; index < nbParents; index++ {
			t.nodes[level+1] = append(t.nodes[level+1], t.hash(t.children(level, index)))
		}
	}

	return t, nil
}

// Root returns the root digest. For a tree with no leaves this is the
// precomputed zero digest of the top level.
func (t *Tree[N]) Root() N {
	if len(t.nodes[t.depth]) > 0 {
		return t.nodes[t.depth][0]
	}
	return t.zeroes[t.depth]
}

// Depth returns the number of hashing levels between leaves and root.
func (t *Tree[N]) Depth() int { return t.depth }

// Arity returns the number of children per internal node.
func (t *Tree[N]) Arity() int { return t.arity }

// Leaves returns the leaves in insertion order.
func (t *Tree[N]) Leaves() []N {
	leaves := make([]N, len(t.nodes[0]))
	copy(leaves, t.nodes[0])
	return leaves
}

// Zeroes returns the per-level zero digests, from leaf level to root level.
func (t *Tree[N]) Zeroes() []N {
	zeroes := make([]N, len(t.zeroes))
	copy(zeroes, t.zeroes)
	return zeroes
}

// Size returns the number of leaves inserted so far.
func (t *Tree[N]) Size() int { return len(t.nodes[0]) }

// IndexOf returns the index of the first leaf equal to the given digest.
func (t *Tree[N]) IndexOf(leaf N) (int, bool) {
	for i, l := range t.nodes[0] {
		if l == leaf {
			return i, true
		}
	}
	return 0, false
}

// Insert appends a leaf and recomputes the digests on its path to the root.
func (t *Tree[N]) Insert(leaf N) error {
	if len(t.nodes[0]) >= t.capacity {
		return ErrTreeIsFull
	}
	t.nodes[0] = append(t.nodes[0], leaf)
	t.refreshPath(len(t.nodes[0]) - 1)
	return nil
}

// Update replaces the leaf at the given index and recomputes the digests on
// its path to the root.
func (t *Tree[N]) Update(index int, leaf N) error {
	if index < 0 || index >= len(t.nodes[0]) {
		return ErrIndexOutOfBounds
	}
	t.nodes[0][index] = leaf
	t.refreshPath(index)
	return nil
}

// Delete resets the leaf at the given index to the zero value. The slot stays
// allocated; the tree never shrinks.
func (t *Tree[N]) Delete(index int) error {
	return t.Update(index, t.zeroes[0])
}

// BatchInsert appends the given leaves and recomputes each affected parent
// once per level. It either inserts all leaves or none.
func (t *Tree[N]) BatchInsert(leaves []N) error {
	oldLen := len(t.nodes[0])
	if oldLen+len(leaves) > t.capacity {
		return ErrTreeIsFull
	}
	t.nodes[0] = append(t.nodes[0], leaves...)

	start := oldLen
	for level := 0; level < t.depth; level++ {
		parentStart := start / t.arity
		parentEnd := ceilDiv(len(t.nodes[level]), t.arity)
		for index := parentStart; index < parentEnd; index++ {
			t.setNode(level+1, index, t.hash(t.children(level, index)))
		}
		start = parentStart
	}

	log := logger.Logger()
	log.Debug().Int("leaves", len(leaves)).Int("size", len(t.nodes[0])).Msg("imt batch insert")
	return nil
}

// BatchUpdate replaces several leaves at once, recomputing each affected
// parent once per level. Indices are validated before any leaf is written.
func (t *Tree[N]) BatchUpdate(updates []LeafUpdate[N]) error {
	affected := make(map[int]struct{}, len(updates))
	for _, u := range updates {
		if u.Index < 0 || u.Index >= len(t.nodes[0]) {
			return ErrIndexOutOfBounds
		}
		affected[u.Index] = struct{}{}
	}

	for _, u := range updates {
		t.nodes[0][u.Index] = u.Leaf
	}

	for level := 0; level < t.depth; level++ {
		parents := make(map[int]struct{}, len(affected))
		for index := range affected {
			parents[index/t.arity] = struct{}{}
		}
		for index := range parents {
			t.setNode(level+1, index, t.hash(t.children(level, index)))
		}
		affected = parents
	}

	log := logger.Logger()
	log.Debug().Int("updates", len(updates)).Msg("imt batch update")
	return nil
}

// BatchDelete resets the leaves at the given indices to the zero value.
func (t *Tree[N]) BatchDelete(indices []int) error {
	updates := make([]LeafUpdate[N], len(indices))
	for i, index := range indices {
		updates[i] = LeafUpdate[N]{Index: index, Leaf: t.zeroes[0]}
	}
	return t.BatchUpdate(updates)
}

// refreshPath recomputes the single parent containing index at each level.
func (t *Tree[N]) refreshPath(index int) {
	for level := 0; level < t.depth; level++ {
		index /= t.arity
		t.setNode(level+1, index, t.hash(t.children(level, index)))
	}
}

// children returns the arity-sized child window of parent index at the given
// level, filling absent slots with the level's zero digest.
func (t *Tree[N]) children(level, index int) []N {
	children := make([]N, t.arity)
	for i := range children {
		children[i] = t.node(level, index*t.arity+i)
	}
	return children
}

func (t *Tree[N]) node(level, index int) N {
	if index < len(t.nodes[level]) {
		return t.nodes[level][index]
	}
	return t.zeroes[level]
}

func (t *Tree[N]) setNode(level, index int, digest N) {
	if index < len(t.nodes[level]) {
		t.nodes[level][index] = digest
		return
	}
	t.nodes[level] = append(t.nodes[level], digest)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// pow returns base^exp, saturating at MaxInt64 so capacity checks stay valid
// for depth and arity combinations past any realistic tree size.
func pow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		if r > math.MaxInt64/base {
			return math.MaxInt64
		}
		r *= base
	}
	return r
}
