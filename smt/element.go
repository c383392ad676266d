package smt

import (
	"errors"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidElement reports a key or value whose tagging is inconsistent
// with the tree mode, or a key that cannot be mapped to a path.
var ErrInvalidElement = errors.New("invalid element for this tree mode")

// Element is a tagged digest: either a string or a big integer. Keys, values
// and internal digests of a tree all share this domain so a single hash
// function can combine them.
type Element struct {
	n *big.Int
	s string
}

// NewStr returns a string-tagged element. Keys in non-big mode must be
// lowercase hexadecimal strings; values and hash outputs are unconstrained.
func NewStr(s string) Element {
	return Element{s: s}
}

// NewBigInt returns a big-integer-tagged element. The integer is copied.
func NewBigInt(n *big.Int) Element {
	return Element{n: new(big.Int).Set(n)}
}

// IsBig reports whether the element carries a big integer.
func (e Element) IsBig() bool { return e.n != nil }

// BigInt returns the carried integer, or nil for string elements.
func (e Element) BigInt() *big.Int {
	if e.n == nil {
		return nil
	}
	return new(big.Int).Set(e.n)
}

// String returns the canonical text of the element: the string itself, or
// the decimal representation of the integer.
func (e Element) String() string {
	if e.n != nil {
		return e.n.String()
	}
	return e.s
}

// Equal reports whether two elements carry the same tag and the same value.
func (e Element) Equal(o Element) bool {
	if (e.n == nil) != (o.n == nil) {
		return false
	}
	if e.n != nil {
		return e.n.Cmp(o.n) == 0
	}
	return e.s == o.s
}

// key returns the canonical map key of the element.
func (e Element) key() string {
	if e.n != nil {
		return "b:" + e.n.String()
	}
	return "s:" + e.s
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

type elementWire struct {
	_   struct{} `cbor:",toarray"`
	Big bool
	Val string
}

// MarshalCBOR encodes the element as a (tag, canonical text) pair.
func (e Element) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(elementWire{Big: e.IsBig(), Val: e.String()})
}

// UnmarshalCBOR decodes an element encoded by MarshalCBOR.
func (e *Element) UnmarshalCBOR(data []byte) error {
	var w elementWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Big {
		*e = NewStr(w.Val)
		return nil
	}
	n, ok := new(big.Int).SetString(w.Val, 10)
	if !ok {
		return ErrInvalidElement
	}
	*e = NewBigInt(n)
	return nil
}
