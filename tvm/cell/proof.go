package cell

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrProofCheck = errors.New("merkle proof check failed")

// CreateProof builds a merkle proof cell which keeps paths to all cells with
// given hashes and prunes other subtrees.
func (c *Cell) CreateProof(parts [][]byte) (*Cell, error) {
	body, found, err := c.toProof(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to build proof for cell: %w", err)
	}

	if len(found) != len(parts) {
		return nil, fmt.Errorf("given cell not contains all parts to proof")
	}

	data := make([]byte, 1+32+2)
	data[0] = byte(MerkleProofCellType)
	copy(data[1:], body.getHash(0))
	binary.BigEndian.PutUint16(data[1+32:], body.getDepth(0))

	return BeginCell().MustStoreSlice(data, merkleProofBits).MustStoreRef(body).EndExoticCell()
}

func (c *Cell) toProof(parts [][]byte) (*Cell, [][]byte, error) {
	for _, part := range parts {
		if bytes.Equal(c.Hash(), part) {
			// for this cell we need a proof
			return c, [][]byte{part}, nil
		}
	}
	if len(c.refs) == 0 {
		return c, nil, nil
	}

	refs := make([]*Cell, len(c.refs))
	var found [][]byte
	var prune []int
	for i, ref := range c.refs {
		r, hasParts, err := ref.toProof(parts)
		if err != nil {
			return nil, nil, err
		}
		refs[i] = r

		if len(hasParts) > 0 {
		partsIter:
			for _, part := range hasParts {
				for _, hPart := range found {
					if bytes.Equal(part, hPart) {
						continue partsIter
					}
				}
				found = append(found, part)
			}
		} else if len(ref.refs) > 0 { // we prune only if cell has refs
			prune = append(prune, i)
		}
	}

	if len(found) == 0 {
		return c, nil, nil
	}

	for _, i := range prune {
		pruned, err := pruneCell(c.refs[i])
		if err != nil {
			return nil, nil, err
		}
		refs[i] = pruned
	}

	b := c.ToBuilder()
	b.refs = refs
	return b.EndCell(), found, nil
}

func pruneCell(c *Cell) (*Cell, error) {
	if c.Level() != 0 {
		return nil, fmt.Errorf("only level 0 subtrees can be pruned, got level %d", c.Level())
	}

	data := make([]byte, 2+32+2)
	data[0] = byte(PrunedCellType)
	data[1] = 1
	copy(data[2:], c.getHash(0))
	binary.BigEndian.PutUint16(data[2+32:], c.getDepth(0))

	return BeginCell().MustStoreSlice(data, uint(len(data)*8)).EndExoticCell()
}

// CheckProof verifies that proof is a merkle proof of the cell with given hash.
func CheckProof(proof *Cell, hash []byte) error {
	if proof.GetType() != MerkleProofCellType {
		return fmt.Errorf("%w: not a merkle proof cell", ErrProofCheck)
	}

	if !bytes.Equal(proof.data[1:33], hash) {
		return fmt.Errorf("%w: hash not matches", ErrProofCheck)
	}

	// stored hash was checked against virtualized body hash on creation
	if !bytes.Equal(proof.refs[0].getHash(0), hash) {
		return fmt.Errorf("%w: body hash not matches", ErrProofCheck)
	}
	return nil
}

// UnwrapProof returns the proof body if the proof is valid for hash.
func UnwrapProof(proof *Cell, hash []byte) (*Cell, error) {
	if err := CheckProof(proof, hash); err != nil {
		return nil, err
	}
	return proof.refs[0], nil
}
