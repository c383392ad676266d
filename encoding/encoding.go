// Package encoding offers (de)serialization APIs for gnark-merkle proofs.
//
// The general form is CBOR in canonical mode, so equal proofs serialize to
// equal bytes. Lean incremental Merkle tree proofs additionally get a
// compact bit-packed binary form.
package encoding

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Marshal serializes a proof to canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal deserializes canonical CBOR into the provided pointer.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// Serialize writes a proof to the writer as canonical CBOR.
func Serialize(w io.Writer, v any) error {
	return encMode.NewEncoder(w).Encode(v)
}

// Deserialize reads canonical CBOR from the reader into the provided
// pointer.
func Deserialize(r io.Reader, v any) error {
	return cbor.NewDecoder(r).Decode(v)
}
