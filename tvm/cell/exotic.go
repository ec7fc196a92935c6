package cell

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	prunedHeaderBits   = 16
	levelHashBits      = 256 + 16
	libraryBits        = 8 + 256
	merkleProofBits    = 8 + 256 + 16
	merkleUpdateBits   = 8 + 2*256 + 2*16
	merkleProofHashOff = 1
)

// exoticLevelMask validates the layout of a special cell and returns its level mask.
func (c *Cell) exoticLevelMask() (LevelMask, error) {
	if c.bitsSz < 8 {
		return LevelMask{}, fmt.Errorf("%w: not enough data for a special cell", ErrInvalidCell)
	}

	switch typ := Type(c.data[0]); typ {
	case PrunedCellType:
		if len(c.refs) != 0 {
			return LevelMask{}, fmt.Errorf("%w: pruned branch can not have refs", ErrInvalidCell)
		}
		if c.bitsSz < prunedHeaderBits {
			return LevelMask{}, fmt.Errorf("%w: pruned branch has no level mask", ErrInvalidCell)
		}

		mask := LevelMask{Mask: c.data[1]}
		if lvl := mask.GetLevel(); lvl == 0 || lvl > MaxLevel {
			return LevelMask{}, fmt.Errorf("%w: pruned branch level %d is out of range", ErrInvalidCell, lvl)
		}

		if want := uint(prunedHeaderBits + mask.getHashIndex()*levelHashBits); c.bitsSz != want {
			return LevelMask{}, fmt.Errorf("%w: pruned branch should have %d bits, got %d", ErrInvalidCell, want, c.bitsSz)
		}
		return mask, nil
	case LibraryCellType:
		if c.bitsSz != libraryBits || len(c.refs) != 0 {
			return LevelMask{}, fmt.Errorf("%w: bad library cell layout", ErrInvalidCell)
		}
		return LevelMask{}, nil
	case MerkleProofCellType:
		if c.bitsSz != merkleProofBits || len(c.refs) != 1 {
			return LevelMask{}, fmt.Errorf("%w: bad merkle proof layout", ErrInvalidCell)
		}
		if err := c.checkMerkleRef(0, merkleProofHashOff, merkleProofHashOff+32); err != nil {
			return LevelMask{}, err
		}
		return LevelMask{Mask: c.refs[0].levelMask.Mask >> 1}, nil
	case MerkleUpdateCellType:
		if c.bitsSz != merkleUpdateBits || len(c.refs) != 2 {
			return LevelMask{}, fmt.Errorf("%w: bad merkle update layout", ErrInvalidCell)
		}
		if err := c.checkMerkleRef(0, 1, 1+64); err != nil {
			return LevelMask{}, err
		}
		if err := c.checkMerkleRef(1, 1+32, 1+64+2); err != nil {
			return LevelMask{}, err
		}
		return LevelMask{Mask: (c.refs[0].levelMask.Mask | c.refs[1].levelMask.Mask) >> 1}, nil
	default:
		return LevelMask{}, fmt.Errorf("%w: unknown special cell type %d", ErrInvalidCell, typ)
	}
}

// checkMerkleRef compares the stored hash and depth with the virtualized child.
func (c *Cell) checkMerkleRef(ref int, hashOff, depthOff uint) error {
	child := c.refs[ref]
	if !bytes.Equal(c.data[hashOff:hashOff+32], child.getHash(0)) {
		return fmt.Errorf("%w: merkle ref %d hash mismatch", ErrInvalidCell, ref)
	}
	if binary.BigEndian.Uint16(c.data[depthOff:depthOff+2]) != child.getDepth(0) {
		return fmt.Errorf("%w: merkle ref %d depth mismatch", ErrInvalidCell, ref)
	}
	return nil
}
