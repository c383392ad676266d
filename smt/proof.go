package smt

import (
	"github.com/bits-and-blooms/bitset"
)

// Entry is a key with an optional value. A nil value marks the queried key
// of a non-membership proof.
type Entry struct {
	Key   Element
	Value *Element
}

// Proof proves the membership or the non-membership of a key.
//
// For membership, Entry carries the key and its value. For non-membership,
// Entry carries only the key; MatchingEntry is the colliding leaf sharing
// the key's path prefix when one exists. Siblings runs from the root down to
// the terminating node of the walk.
type Proof struct {
	Entry         Entry
	MatchingEntry *Entry
	Siblings      []Element
	Root          Element
	Membership    bool
}

// CreateProof builds a proof of membership or non-membership for the given
// key.
func (t *SMT) CreateProof(key Element) (Proof, error) {
	path, err := t.keyToPath(key)
	if err != nil {
		return Proof{}, err
	}

	resp := t.retrieveEntry(key, path)

	proof := Proof{
		Entry:      Entry{Key: key},
		Siblings:   resp.siblings,
		Root:       t.root,
		Membership: len(resp.entry) == 3,
	}
	if proof.Membership {
		value := resp.entry[1]
		proof.Entry.Value = &value
	}
	if resp.matching != nil {
		value := resp.matching[1]
		proof.MatchingEntry = &Entry{Key: resp.matching[0], Value: &value}
	}
	return proof, nil
}

// VerifyProof reconstructs the root committed by the proof and compares it
// to the proof's root. Malformed proofs verify as false; the method never
// returns an error.
func (t *SMT) VerifyProof(proof Proof) bool {
	if len(proof.Siblings) > Depth {
		return false
	}

	path, err := t.keyToPath(proof.Entry.Key)
	if err != nil {
		return false
	}

	if proof.Membership {
		// a membership proof carries the entry itself and no collider
		if proof.Entry.Value == nil || proof.MatchingEntry != nil {
			return false
		}
		leaf := t.hash([]Element{proof.Entry.Key, *proof.Entry.Value, t.mark})
		return t.climb(leaf, path, proof.Siblings).Equal(proof.Root)
	}

	if proof.Entry.Value != nil {
		return false
	}

	if proof.MatchingEntry == nil {
		// the walk ended on an empty pointer
		return t.climb(t.zero, path, proof.Siblings).Equal(proof.Root)
	}

	// the walk ended on a leaf with a different key: that leaf must be in
	// the tree, and it must sit no deeper than the paths agree
	matching := *proof.MatchingEntry
	if matching.Value == nil {
		return false
	}
	matchingPath, err := t.keyToPath(matching.Key)
	if err != nil {
		return false
	}
	if matching.Key.Equal(proof.Entry.Key) {
		return false
	}
	if len(proof.Siblings) > commonPrefixLen(path, matchingPath) {
		return false
	}

	leaf := t.hash([]Element{matching.Key, *matching.Value, t.mark})
	return t.climb(leaf, matchingPath, proof.Siblings).Equal(proof.Root)
}

// climb recomputes the root from a bottom node, the walk, and the sibling
// digests collected root-to-leaf.
func (t *SMT) climb(node Element, path *bitset.BitSet, siblings []Element) Element {
	for i := len(siblings) - 1; i >= 0; i-- {
		if path.Test(uint(i)) {
			node = t.hash([]Element{siblings[i], node})
		} else {
			node = t.hash([]Element{node, siblings[i]})
		}
	}
	return node
}
