package encoding

import (
	"bytes"
	"strings"
	"testing"

	"github.com/consensys/gnark-merkle/imt"
	"github.com/consensys/gnark-merkle/leanimt"
	"github.com/consensys/gnark-merkle/smt"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

func joinHash(children []string) string {
	return strings.Join(children, "-")
}

func TestIMTProofRoundTrip(t *testing.T) {
	assert := require.New(t)

	tree, err := imt.New(joinHash, 3, 2, "zero", []string{"a", "b", "c"})
	assert.NoError(err)
	proof, err := tree.CreateProof(1)
	assert.NoError(err)

	data, err := Marshal(proof)
	assert.NoError(err)

	var decoded imt.Proof[string]
	assert.NoError(Unmarshal(data, &decoded))
	assert.Equal(proof, decoded)
	assert.True(tree.VerifyProof(decoded))

	// canonical mode: equal proofs give equal bytes
	again, err := Marshal(proof)
	assert.NoError(err)
	assert.Equal(data, again)
}

func TestSMTProofRoundTrip(t *testing.T) {
	assert := require.New(t)

	smtJoin := func(children []smt.Element) smt.Element {
		parts := make([]string, len(children))
		for i, c := range children {
			parts[i] = c.String()
		}
		return smt.NewStr(strings.Join(parts, ","))
	}

	tree := smt.New(smtJoin, false)
	assert.NoError(tree.Add(smt.NewStr("6"), smt.NewStr("six")))
	assert.NoError(tree.Add(smt.NewStr("2"), smt.NewStr("two")))

	for _, key := range []string{"6", "e"} {
		proof, err := tree.CreateProof(smt.NewStr(key))
		assert.NoError(err)

		var buf bytes.Buffer
		assert.NoError(Serialize(&buf, proof))

		var decoded smt.Proof
		assert.NoError(Deserialize(&buf, &decoded))
		assert.Equal(proof.Membership, decoded.Membership)
		assert.True(decoded.Root.Equal(proof.Root))
		assert.True(tree.VerifyProof(decoded))
	}
}

func leanLeaf(i uint64) []byte {
	leaf := make([]byte, 32)
	for b := 0; i > 0; b++ {
		leaf[31-b] = byte(i)
		i >>= 8
	}
	return leaf
}

func TestLeanProofRoundTrip(t *testing.T) {
	assert := require.New(t)

	leaves := make([][]byte, 5)
	for i := range leaves {
		leaves[i] = leanLeaf(uint64(i) + 1)
	}
	tree, err := leanimt.New(sha3.NewLegacyKeccak256(), leaves)
	assert.NoError(err)

	proof, err := tree.GenerateProof(2)
	assert.NoError(err)

	// CBOR form
	data, err := Marshal(proof)
	assert.NoError(err)
	var decoded leanimt.Proof
	assert.NoError(Unmarshal(data, &decoded))
	assert.Equal(proof, decoded)

	// compact form
	var buf bytes.Buffer
	assert.NoError(WriteLeanProof(&buf, proof))
	compact, err := ReadLeanProof(&buf)
	assert.NoError(err)
	assert.Equal(proof, compact)
	assert.True(leanimt.VerifyProof(sha3.NewLegacyKeccak256(), compact))
}

func TestLeanProofCompactProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("compact round trip preserves every proof", prop.ForAll(
		func(n, index int) bool {
			index = index % n
			leaves := make([][]byte, n)
			for i := range leaves {
				leaves[i] = leanLeaf(uint64(i) + 1)
			}
			tree, err := leanimt.New(sha3.NewLegacyKeccak256(), leaves)
			if err != nil {
				return false
			}
			proof, err := tree.GenerateProof(index)
			if err != nil {
				return false
			}

			var buf bytes.Buffer
			if err := WriteLeanProof(&buf, proof); err != nil {
				return false
			}
			decoded, err := ReadLeanProof(&buf)
			if err != nil {
				return false
			}
			return leanimt.VerifyProof(sha3.NewLegacyKeccak256(), decoded) &&
				bytes.Equal(decoded.Root, proof.Root) &&
				decoded.Index == proof.Index
		},
		gen.IntRange(1, 64),
		gen.IntRange(0, 1<<30),
	))

	properties.TestingRun(t)
}

func TestWriteLeanProofRejections(t *testing.T) {
	assert := require.New(t)

	var buf bytes.Buffer

	// mismatched digest widths
	assert.ErrorIs(WriteLeanProof(&buf, leanimt.Proof{
		Root: make([]byte, 32),
		Leaf: make([]byte, 16),
	}), ErrInvalidLeanProof)

	// index bits past the sibling count
	assert.ErrorIs(WriteLeanProof(&buf, leanimt.Proof{
		Root:     make([]byte, 32),
		Leaf:     make([]byte, 32),
		Index:    2,
		Siblings: [][]byte{make([]byte, 32)},
	}), ErrInvalidLeanProof)
}
