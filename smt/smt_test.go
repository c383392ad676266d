package smt

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	_ "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	gchash "github.com/consensys/gnark-crypto/hash"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

// joinHash joins the children with a comma. It keeps digests readable in
// failing assertions and works for both element modes.
func joinHash(children []Element) Element {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return NewStr(strings.Join(parts, ","))
}

// bigJoinHash is joinHash for big mode trees: the digest is re-tagged as a
// big integer derived from the joined text so digests stay in the big domain.
func bigJoinHash(children []Element) Element {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	n := new(big.Int).SetBytes([]byte(strings.Join(parts, ",")))
	return NewBigInt(n)
}

func TestNew(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	assert.True(tree.Root().Equal(NewStr("0")))

	bigTree := New(bigJoinHash, true)
	assert.True(bigTree.Root().Equal(NewBigInt(big.NewInt(0))))
}

func TestAddGet(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	assert.NoError(tree.Add(NewStr("aaa"), NewStr("bbb")))

	v, ok := tree.Get(NewStr("aaa"))
	assert.True(ok)
	assert.True(v.Equal(NewStr("bbb")))

	_, ok = tree.Get(NewStr("ccc"))
	assert.False(ok)

	// a single entry hashes directly into the root
	assert.Equal("aaa,bbb,1", tree.Root().String())

	assert.ErrorIs(tree.Add(NewStr("aaa"), NewStr("xxx")), ErrKeyAlreadyExists)
}

func TestUpdateDelete(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	assert.NoError(tree.Add(NewStr("aaa"), NewStr("bbb")))

	assert.NoError(tree.Update(NewStr("aaa"), NewStr("ccc")))
	v, ok := tree.Get(NewStr("aaa"))
	assert.True(ok)
	assert.True(v.Equal(NewStr("ccc")))

	assert.ErrorIs(tree.Update(NewStr("def"), NewStr("x")), ErrKeyDoesNotExist)
	assert.ErrorIs(tree.Delete(NewStr("def")), ErrKeyDoesNotExist)

	assert.NoError(tree.Delete(NewStr("aaa")))
	assert.True(tree.Root().Equal(NewStr("0")))
	_, ok = tree.Get(NewStr("aaa"))
	assert.False(ok)
	assert.Empty(tree.nodes)
}

func TestInvalidElements(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	// big keys and values are rejected in string mode
	assert.ErrorIs(tree.Add(NewBigInt(big.NewInt(1)), NewStr("v")), ErrInvalidElement)
	assert.ErrorIs(tree.Add(NewStr("aa"), NewBigInt(big.NewInt(1))), ErrInvalidElement)
	// keys must be lowercase hexadecimal
	assert.ErrorIs(tree.Add(NewStr("not hex!"), NewStr("v")), ErrInvalidElement)
	assert.ErrorIs(tree.Add(NewStr("AB"), NewStr("v")), ErrInvalidElement)

	bigTree := New(bigJoinHash, true)
	assert.ErrorIs(bigTree.Add(NewStr("aa"), NewBigInt(big.NewInt(1))), ErrInvalidElement)
	assert.ErrorIs(bigTree.Add(NewBigInt(big.NewInt(-1)), NewBigInt(big.NewInt(1))), ErrInvalidElement)

	tooWide := new(big.Int).Lsh(big.NewInt(1), Depth)
	assert.ErrorIs(bigTree.Add(NewBigInt(tooWide), NewBigInt(big.NewInt(1))), ErrInvalidElement)
}

func TestErroredCallLeavesTreeUntouched(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	assert.NoError(tree.Add(NewStr("ab"), NewStr("v1")))
	root := tree.Root()
	nbNodes := len(tree.nodes)

	assert.Error(tree.Add(NewStr("ab"), NewStr("v2")))
	assert.Error(tree.Update(NewStr("cd"), NewStr("v")))
	assert.Error(tree.Delete(NewStr("cd")))
	assert.Error(tree.Add(NewStr("XYZ"), NewStr("v")))

	assert.True(tree.Root().Equal(root))
	assert.Equal(nbNodes, len(tree.nodes))
}

func TestCollisionSplit(t *testing.T) {
	assert := require.New(t)

	// keys 6 (…0110) and 2 (…0010) share their two lowest bits and split at
	// bit 2; the tree must grow internal nodes down to the divergence.
	tree := New(joinHash, false)
	assert.NoError(tree.Add(NewStr("6"), NewStr("six")))
	assert.NoError(tree.Add(NewStr("2"), NewStr("two")))

	v, ok := tree.Get(NewStr("6"))
	assert.True(ok)
	assert.True(v.Equal(NewStr("six")))
	v, ok = tree.Get(NewStr("2"))
	assert.True(ok)
	assert.True(v.Equal(NewStr("two")))

	// deleting one entry collapses the other back into the root
	assert.NoError(tree.Delete(NewStr("2")))
	assert.Equal("6,six,1", tree.Root().String())
}

func TestDeleteRestoresPreviousRoot(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	assert.NoError(tree.Add(NewStr("6"), NewStr("six")))
	assert.NoError(tree.Add(NewStr("5"), NewStr("five")))
	root := tree.Root()
	nbNodes := len(tree.nodes)

	assert.NoError(tree.Add(NewStr("2"), NewStr("two")))
	assert.NoError(tree.Delete(NewStr("2")))

	assert.True(tree.Root().Equal(root))
	assert.Equal(nbNodes, len(tree.nodes))
}

func TestBigMode(t *testing.T) {
	assert := require.New(t)

	tree := New(bigJoinHash, true)
	key := NewBigInt(big.NewInt(123))
	value := NewBigInt(big.NewInt(456))

	assert.NoError(tree.Add(key, value))
	v, ok := tree.Get(key)
	assert.True(ok)
	assert.True(v.Equal(value))

	assert.NoError(tree.Update(key, NewBigInt(big.NewInt(789))))
	assert.NoError(tree.Delete(key))
	assert.True(tree.Root().Equal(NewBigInt(big.NewInt(0))))
}

// The walk convention must hold at both endpoints of the key space: the all
// zero key and the all one key.
func TestKeySpaceEndpoints(t *testing.T) {
	assert := require.New(t)

	tree := New(bigJoinHash, true)
	low := NewBigInt(big.NewInt(0))
	high := NewBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), Depth), big.NewInt(1)))

	assert.NoError(tree.Add(low, NewBigInt(big.NewInt(1))))
	assert.NoError(tree.Add(high, NewBigInt(big.NewInt(2))))

	v, ok := tree.Get(low)
	assert.True(ok)
	assert.True(v.Equal(NewBigInt(big.NewInt(1))))
	v, ok = tree.Get(high)
	assert.True(ok)
	assert.True(v.Equal(NewBigInt(big.NewInt(2))))

	for _, key := range []Element{low, high} {
		proof, err := tree.CreateProof(key)
		assert.NoError(err)
		assert.True(proof.Membership)
		assert.True(tree.VerifyProof(proof))
	}

	assert.NoError(tree.Delete(high))
	v, ok = tree.Get(low)
	assert.True(ok)
	assert.True(v.Equal(NewBigInt(big.NewInt(1))))
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("add then get then delete restores the previous root", prop.ForAll(
		func(seeds []uint64) bool {
			tree := New(bigJoinHash, true)

			// dedupe: Add rejects repeated keys by design
			seen := make(map[uint64]struct{})
			var keys []uint64
			for _, s := range seeds {
				if _, ok := seen[s]; ok {
					continue
				}
				seen[s] = struct{}{}
				keys = append(keys, s)
			}

			roots := make([]Element, 0, len(keys)+1)
			roots = append(roots, tree.Root())

			for i, k := range keys {
				if tree.Add(NewBigInt(new(big.Int).SetUint64(k)), NewBigInt(big.NewInt(int64(i)))) != nil {
					return false
				}
				roots = append(roots, tree.Root())
			}

			for i, k := range keys {
				key := NewBigInt(new(big.Int).SetUint64(k))
				v, ok := tree.Get(key)
				if !ok || !v.Equal(NewBigInt(big.NewInt(int64(i)))) {
					return false
				}
			}

			// delete in reverse order; each deletion must restore the root
			// recorded before the matching add
			for i := len(keys) - 1; i >= 0; i-- {
				key := NewBigInt(new(big.Int).SetUint64(keys[i]))
				if tree.Delete(key) != nil {
					return false
				}
				if !tree.Root().Equal(roots[i]) {
					return false
				}
			}
			return len(tree.nodes) == 0
		},
		gen.SliceOf(gen.UInt64()),
	))

	properties.TestingRun(t)
}

func TestUpdateIdempotence(t *testing.T) {
	assert := require.New(t)

	tree := New(joinHash, false)
	for i := 0; i < 8; i++ {
		assert.NoError(tree.Add(NewStr(fmt.Sprintf("%x", i*7+1)), NewStr("v")))
	}
	root := tree.Root()

	for i := 0; i < 8; i++ {
		key := NewStr(fmt.Sprintf("%x", i*7+1))
		v, ok := tree.Get(key)
		assert.True(ok)
		assert.NoError(tree.Update(key, v))
	}
	assert.True(tree.Root().Equal(root))
}

func TestWithMiMC(t *testing.T) {
	assert := require.New(t)

	mimc := func(children []Element) Element {
		h := gchash.MIMC_BN254.New()
		for _, c := range children {
			buf := make([]byte, 32)
			c.BigInt().FillBytes(buf)
			h.Write(buf)
		}
		return NewBigInt(new(big.Int).SetBytes(h.Sum(nil)))
	}

	tree := New(mimc, true)
	for i := int64(1); i <= 10; i++ {
		assert.NoError(tree.Add(NewBigInt(big.NewInt(i)), NewBigInt(big.NewInt(i*100))))
	}

	for i := int64(1); i <= 10; i++ {
		proof, err := tree.CreateProof(NewBigInt(big.NewInt(i)))
		assert.NoError(err)
		assert.True(proof.Membership)
		assert.True(tree.VerifyProof(proof))
	}

	proof, err := tree.CreateProof(NewBigInt(big.NewInt(999)))
	assert.NoError(err)
	assert.False(proof.Membership)
	assert.True(tree.VerifyProof(proof))
}
