package smt

import (
	"math/big"

	"github.com/bits-and-blooms/bitset"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// keyToPath maps a key to its walk: bit i of the key, least significant
// first, selects the child at depth i. The key must match the tree mode and
// fit in Depth bits.
func (t *SMT) keyToPath(key Element) (*bitset.BitSet, error) {
	var n *big.Int

	if t.big {
		if !key.IsBig() {
			return nil, ErrInvalidElement
		}
		n = key.n
	} else {
		if key.IsBig() || !isHex(key.s) {
			return nil, ErrInvalidElement
		}
		var ok bool
		n, ok = new(big.Int).SetString(key.s, 16)
		if !ok {
			return nil, ErrInvalidElement
		}
	}

	if n.Sign() < 0 || n.BitLen() > Depth {
		return nil, ErrInvalidElement
	}

	path := bitset.New(Depth)
	for i := 0; i < n.BitLen(); i++ {
		if n.Bit(i) == 1 {
			path.Set(uint(i))
		}
	}
	return path, nil
}

// commonPrefixLen returns the number of leading path bits on which the two
// walks agree.
func commonPrefixLen(a, b *bitset.BitSet) int {
	for i := uint(0); i < Depth; i++ {
		if a.Test(i) != b.Test(i) {
			return int(i)
		}
	}
	return Depth
}
