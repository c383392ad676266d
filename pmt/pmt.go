// Package pmt implements a persistent fixed-depth binary Merkle tree over a
// user-supplied key/value store.
//
// The tree has the same shape and zero-fill semantics as an arity-2
// incremental Merkle tree, but keeps every node in a Database instead of in
// memory, so it survives restarts and can grow past RAM. Package-local
// stores are provided for maps, pebble, and an LRU cache decorator.
package pmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/consensys/gnark-merkle/logger"
)

var (
	ErrDepthOutOfRange  = errors.New("tree depth must be between 1 and 32")
	ErrTreeIsFull       = errors.New("the tree cannot contain more than 2^depth leaves")
	ErrIndexOutOfBounds = errors.New("the leaf does not exist in this tree")
	ErrLeafSize         = errors.New("leaf size does not match the hasher digest size")
)

// Tree is a persistent binary Merkle tree. Nodes are stored under
// (level, index) keys; absent nodes read as the precomputed zero digest of
// their level.
type Tree struct {
	db     Database
	h      hash.Hash
	depth  int
	width  int
	zeroes [][]byte
	size   uint64
}

// Proof is a Merkle membership proof with one sibling digest per level,
// leaf level first.
type Proof struct {
	Root      []byte
	Leaf      []byte
	LeafIndex uint64
	Siblings  [][]byte
}

var sizeKey = []byte{'s'}

// New opens a tree of the given depth over the store. A tree previously
// written to the store resumes from its recorded size.
func New(db Database, h hash.Hash, depth int) (*Tree, error) {
	if depth < 1 || depth > 32 {
		return nil, ErrDepthOutOfRange
	}

	t := &Tree{
		db:     db,
		h:      h,
		depth:  depth,
		width:  h.Size(),
		zeroes: make([][]byte, depth+1),
	}

	t.zeroes[0] = make([]byte, t.width)
	for level := 0; level < depth; level++ {
		t.zeroes[level+1] = t.hashPair(t.zeroes[level], t.zeroes[level])
	}

	raw, ok, err := db.Get(sizeKey)
	if err != nil {
		return nil, fmt.Errorf("load tree size: %w", err)
	}
	if ok {
		t.size = binary.BigEndian.Uint64(raw)
	}

	log := logger.Logger()
	log.Debug().Int("depth", depth).Uint64("size", t.size).Msg("pmt opened")
	return t, nil
}

// Size returns the number of leaves inserted so far.
func (t *Tree) Size() uint64 { return t.size }

// Depth returns the number of hashing levels between leaves and root.
func (t *Tree) Depth() int { return t.depth }

// Root returns the root digest.
func (t *Tree) Root() ([]byte, error) {
	return t.node(t.depth, 0)
}

// GetLeaf returns the leaf at the given index.
func (t *Tree) GetLeaf(index uint64) ([]byte, error) {
	if index >= t.size {
		return nil, ErrIndexOutOfBounds
	}
	return t.node(0, index)
}

// Insert appends a leaf and rewrites the digests on its path to the root.
// The recorded size moves only after every node write succeeded.
func (t *Tree) Insert(leaf []byte) error {
	if len(leaf) != t.width {
		return ErrLeafSize
	}
	if t.size >= uint64(1)<<t.depth {
		return ErrTreeIsFull
	}

	if err := t.writePath(t.size, leaf); err != nil {
		return err
	}

	t.size++
	return t.persistSize()
}

// Update replaces the leaf at the given index and rewrites its path.
func (t *Tree) Update(index uint64, leaf []byte) error {
	if index >= t.size {
		return ErrIndexOutOfBounds
	}
	if len(leaf) != t.width {
		return ErrLeafSize
	}
	return t.writePath(index, leaf)
}

// Delete resets the leaf at the given index to the zero digest. The slot
// stays allocated; the tree never shrinks.
func (t *Tree) Delete(index uint64) error {
	return t.Update(index, t.zeroes[0])
}

// CreateProof builds a membership proof for the leaf at the given index.
func (t *Tree) CreateProof(index uint64) (Proof, error) {
	if index >= t.size {
		return Proof{}, ErrIndexOutOfBounds
	}

	leaf, err := t.node(0, index)
	if err != nil {
		return Proof{}, err
	}

	siblings := make([][]byte, 0, t.depth)
	current := index
	for level := 0; level < t.depth; level++ {
		sibling, err := t.node(level, current^1)
		if err != nil {
			return Proof{}, err
		}
		siblings = append(siblings, sibling)
		current >>= 1
	}

	root, err := t.Root()
	if err != nil {
		return Proof{}, err
	}

	return Proof{
		Root:      root,
		Leaf:      leaf,
		LeafIndex: index,
		Siblings:  siblings,
	}, nil
}

// VerifyProof reconstructs the root from the proof contents under the given
// hasher and tree depth. Malformed proofs verify as false.
func VerifyProof(h hash.Hash, depth int, proof Proof) bool {
	if depth < 1 || depth > 32 {
		return false
	}
	if proof.LeafIndex >= uint64(1)<<depth {
		return false
	}
	if len(proof.Siblings) != depth {
		return false
	}

	node := proof.Leaf
	index := proof.LeafIndex
	for _, sibling := range proof.Siblings {
		h.Reset()
		if index&1 == 1 {
			h.Write(sibling)
			h.Write(node)
		} else {
			h.Write(node)
			h.Write(sibling)
		}
		node = h.Sum(nil)
		index >>= 1
	}

	return bytes.Equal(node, proof.Root)
}

// writePath stores the leaf and rewrites every ancestor digest, bottom-up.
func (t *Tree) writePath(index uint64, leaf []byte) error {
	node := make([]byte, len(leaf))
	copy(node, leaf)

	if err := t.putNode(0, index, node); err != nil {
		return err
	}

	for level := 0; level < t.depth; level++ {
		sibling, err := t.node(level, index^1)
		if err != nil {
			return err
		}

		if index&1 == 1 {
			node = t.hashPair(sibling, node)
		} else {
			node = t.hashPair(node, sibling)
		}

		index >>= 1
		if err := t.putNode(level+1, index, node); err != nil {
			return err
		}
	}

	return nil
}

func (t *Tree) node(level int, index uint64) ([]byte, error) {
	value, ok, err := t.db.Get(nodeKey(level, index))
	if err != nil {
		return nil, fmt.Errorf("read node: %w", err)
	}
	if !ok {
		return t.zeroes[level], nil
	}
	return value, nil
}

func (t *Tree) putNode(level int, index uint64, digest []byte) error {
	if err := t.db.Put(nodeKey(level, index), digest); err != nil {
		return fmt.Errorf("write node: %w", err)
	}
	return nil
}

func (t *Tree) persistSize() error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, t.size)
	if err := t.db.Put(sizeKey, raw); err != nil {
		return fmt.Errorf("write tree size: %w", err)
	}
	return nil
}

func (t *Tree) hashPair(left, right []byte) []byte {
	t.h.Reset()
	t.h.Write(left)
	t.h.Write(right)
	return t.h.Sum(nil)
}

// nodeKey addresses a node by level and index within its level.
func nodeKey(level int, index uint64) []byte {
	key := make([]byte, 10)
	key[0] = 'n'
	key[1] = byte(level)
	binary.BigEndian.PutUint64(key[2:], index)
	return key
}
