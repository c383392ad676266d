// Package gnarkmerkle provides Merkle tree accumulators used by zero knowledge protocols
// to commit to sets or key/value maps and to produce succinct membership and
// non-membership proofs.
//
// Four tree flavours are provided, each as its own package:
//   - imt: fixed-depth, fixed-arity Incremental Merkle Tree with per-level zero values
//   - leanimt: binary, dynamic-depth Incremental Merkle Tree with no zero constant
//   - smt: keyed Sparse Merkle Tree with membership and non-membership proofs
//   - pmt: fixed-depth binary Merkle tree persisted in a user-supplied key/value store
//
// All trees are parameterized over the hash function; concrete SNARK-friendly
// primitives (MiMC, Poseidon, ...) are provided by github.com/consensys/gnark-crypto.
package gnarkmerkle

import (
	"github.com/blang/semver/v4"
)

// Version of the library
var Version = semver.MustParse("0.1.0")
