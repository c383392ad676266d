package encoding

import (
	"errors"
	"io"

	"github.com/consensys/gnark-merkle/leanimt"
	"github.com/icza/bitio"
)

var ErrInvalidLeanProof = errors.New("lean proof does not fit the compact layout")

// WriteLeanProof writes the proof in a compact binary layout: digest width,
// sibling count, the index bitmap packed bit-for-bit, then root, leaf and
// sibling digests.
func WriteLeanProof(w io.Writer, proof leanimt.Proof) error {
	width := len(proof.Leaf)
	nbSiblings := len(proof.Siblings)

	if width == 0 || width > 255 || len(proof.Root) != width {
		return ErrInvalidLeanProof
	}
	if nbSiblings > 64 || (nbSiblings < 64 && proof.Index>>nbSiblings != 0) {
		return ErrInvalidLeanProof
	}
	for _, sibling := range proof.Siblings {
		if len(sibling) != width {
			return ErrInvalidLeanProof
		}
	}

	bw := bitio.NewWriter(w)
	if err := bw.WriteByte(byte(width)); err != nil {
		return err
	}
	if err := bw.WriteByte(byte(nbSiblings)); err != nil {
		return err
	}
	if nbSiblings > 0 {
		if err := bw.WriteBits(proof.Index, uint8(nbSiblings)); err != nil {
			return err
		}
	}
	for _, chunk := range [][]byte{proof.Root, proof.Leaf} {
		if _, err := bw.Write(chunk); err != nil {
			return err
		}
	}
	for _, sibling := range proof.Siblings {
		if _, err := bw.Write(sibling); err != nil {
			return err
		}
	}
	return bw.Close()
}

// ReadLeanProof reads a proof written by WriteLeanProof.
func ReadLeanProof(r io.Reader) (leanimt.Proof, error) {
	br := bitio.NewReader(r)

	widthByte, err := br.ReadByte()
	if err != nil {
		return leanimt.Proof{}, err
	}
	width := int(widthByte)
	if width == 0 {
		return leanimt.Proof{}, ErrInvalidLeanProof
	}

	countByte, err := br.ReadByte()
	if err != nil {
		return leanimt.Proof{}, err
	}
	nbSiblings := int(countByte)
	if nbSiblings > 64 {
		return leanimt.Proof{}, ErrInvalidLeanProof
	}

	var index uint64
	if nbSiblings > 0 {
		index, err = br.ReadBits(uint8(nbSiblings))
		if err != nil {
			return leanimt.Proof{}, err
		}
	}

	proof := leanimt.Proof{
		Root:  make([]byte, width),
		Leaf:  make([]byte, width),
		Index: index,
	}
	if _, err := io.ReadFull(br, proof.Root); err != nil {
		return leanimt.Proof{}, err
	}
	if _, err := io.ReadFull(br, proof.Leaf); err != nil {
		return leanimt.Proof{}, err
	}
	for i := 0; i < nbSiblings; i++ {
		sibling := make([]byte, width)
		if _, err := io.ReadFull(br, sibling); err != nil {
			return leanimt.Proof{}, err
		}
		proof.Siblings = append(proof.Siblings, sibling)
	}

	return proof, nil
}
