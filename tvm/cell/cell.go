package cell

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	MaxBits  = 1023
	MaxRefs  = 4
	MaxLevel = 3

	maxDepth = 1024
)

type Type uint8

const (
	OrdinaryCellType     Type = 0x00
	PrunedCellType       Type = 0x01
	LibraryCellType      Type = 0x02
	MerkleProofCellType  Type = 0x03
	MerkleUpdateCellType Type = 0x04
	UnknownCellType      Type = 0xFF
)

var ErrInvalidCell = errors.New("invalid cell")

// Cell is an immutable node of up to 1023 bits and 4 references.
// Hashes and depths of every significant level are computed once on creation.
type Cell struct {
	special   bool
	levelMask LevelMask
	bitsSz    uint
	data      []byte
	refs      []*Cell

	hashes      []byte
	depthLevels []uint16
}

func (c *Cell) BeginParse() *Slice {
	return &Slice{
		cell:   c,
		bitsTo: c.bitsSz,
		refsTo: len(c.refs),
	}
}

func (c *Cell) ToBuilder() *Builder {
	return &Builder{
		bitsSz: c.bitsSz,
		data:   append([]byte{}, c.data...),
		refs:   append([]*Cell{}, c.refs...),
	}
}

func (c *Cell) BitsSize() uint {
	return c.bitsSz
}

func (c *Cell) RefsNum() int {
	return len(c.refs)
}

func (c *Cell) Ref(i int) (*Cell, error) {
	if i < 0 || i >= len(c.refs) {
		return nil, ErrNoMoreRefs
	}
	return c.refs[i], nil
}

func (c *Cell) MustPeekRef(i int) *Cell {
	r, err := c.Ref(i)
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Cell) IsSpecial() bool {
	return c.special
}

func (c *Cell) GetType() Type {
	if !c.special {
		return OrdinaryCellType
	}
	if c.bitsSz < 8 {
		return UnknownCellType
	}

	switch Type(c.data[0]) {
	case PrunedCellType, LibraryCellType, MerkleProofCellType, MerkleUpdateCellType:
		return Type(c.data[0])
	}
	return UnknownCellType
}

func (c *Cell) GetLevelMask() LevelMask {
	return c.levelMask
}

func (c *Cell) Level() int {
	return c.levelMask.GetLevel()
}

// Hash returns the representation hash, or the hash of the given level.
func (c *Cell) Hash(level ...int) []byte {
	lvl := MaxLevel
	if len(level) > 0 {
		lvl = level[0]
	}
	return append([]byte{}, c.getHash(lvl)...)
}

func (c *Cell) Depth(level ...int) uint16 {
	lvl := MaxLevel
	if len(level) > 0 {
		lvl = level[0]
	}
	return c.getDepth(lvl)
}

// HashKey returns the representation hash as a string, usable as a map key.
func (c *Cell) HashKey() string {
	return string(c.getHash(MaxLevel))
}

// Equal reports whether both cells have the same representation hash.
func (c *Cell) Equal(other *Cell) bool {
	if c == nil || other == nil {
		return c == other
	}
	return bytes.Equal(c.getHash(MaxLevel), other.getHash(MaxLevel))
}

// Compare orders cells by representation hash.
func (c *Cell) Compare(other *Cell) int {
	return bytes.Compare(c.getHash(MaxLevel), other.getHash(MaxLevel))
}

func (c *Cell) Dump() string {
	return c.dump(0, false)
}

func (c *Cell) DumpBits() string {
	return c.dump(0, true)
}

func (c *Cell) dump(deep int, bin bool) string {
	var val string
	if bin {
		var sb strings.Builder
		for i := uint(0); i < c.bitsSz; i++ {
			if c.data[i/8]&(0x80>>(i%8)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		val = sb.String()
	} else {
		val = strings.ToUpper(hex.EncodeToString(c.data))
	}

	str := strings.Repeat("  ", deep) + fmt.Sprint(c.bitsSz) + "[" + val + "]"
	if c.special {
		str += "*"
	}
	if len(c.refs) > 0 {
		str += " -> {"
		for i, ref := range c.refs {
			str += "\n" + ref.dump(deep+1, bin)
			if i == len(c.refs)-1 {
				str += "\n"
			} else {
				str += ","
			}
		}
		str += strings.Repeat("  ", deep)
		return str + "}"
	}
	return str
}

func (c *Cell) descriptors(mask LevelMask) (byte, byte) {
	ceilBytes := c.bitsSz / 8
	if c.bitsSz%8 != 0 {
		ceilBytes++
	}

	specBit := byte(0)
	if c.special {
		specBit = 8
	}

	return byte(len(c.refs)) + specBit + mask.Mask*32, byte(ceilBytes + c.bitsSz/8)
}

// paddedData returns data with the completion tag appended when the
// last byte is not fully used.
func (c *Cell) paddedData() []byte {
	payload := append([]byte{}, c.data...)
	if c.bitsSz%8 != 0 {
		payload[len(payload)-1] |= 1 << (7 - c.bitsSz%8)
	}
	return payload
}

func (c *Cell) calculateHashes() error {
	totalHashCount := c.levelMask.getHashIndex() + 1
	c.hashes = make([]byte, 32*totalHashCount)
	c.depthLevels = make([]uint16, totalHashCount)

	typ := c.GetType()
	hashCount := totalHashCount
	if typ == PrunedCellType {
		hashCount = 1
	}

	hashIndexOffset := totalHashCount - hashCount
	hashIndex := 0
	level := c.levelMask.GetLevel()
	for levelIndex := 0; levelIndex <= level; levelIndex++ {
		if !c.levelMask.IsSignificant(levelIndex) {
			continue
		}

		if hashIndex < hashIndexOffset {
			hashIndex++
			continue
		}

		d1, d2 := c.descriptors(c.levelMask.Apply(levelIndex))

		hash := sha256.New()
		hash.Write([]byte{d1, d2})

		if hashIndex == hashIndexOffset {
			if levelIndex != 0 && typ != PrunedCellType {
				return fmt.Errorf("%w: unexpected hash layout on level %d", ErrInvalidCell, levelIndex)
			}
			hash.Write(c.paddedData())
		} else {
			off := hashIndex - hashIndexOffset - 1
			hash.Write(c.hashes[off*32 : (off+1)*32])
		}

		childLevel := levelIndex
		if typ == MerkleProofCellType || typ == MerkleUpdateCellType {
			childLevel++
		}

		var depth uint16
		var depthBytes [2]byte
		for _, ref := range c.refs {
			childDepth := ref.getDepth(childLevel)
			binary.BigEndian.PutUint16(depthBytes[:], childDepth)
			hash.Write(depthBytes[:])

			if childDepth > depth {
				depth = childDepth
			}
		}
		if len(c.refs) > 0 {
			depth++
			if depth >= maxDepth {
				return fmt.Errorf("%w: depth is more than max depth", ErrInvalidCell)
			}
		}

		for _, ref := range c.refs {
			hash.Write(ref.getHash(childLevel))
		}

		off := hashIndex - hashIndexOffset
		c.depthLevels[off] = depth
		copy(c.hashes[off*32:(off+1)*32], hash.Sum(nil))
		hashIndex++
	}

	return nil
}

func (c *Cell) getHash(level int) []byte {
	hashIndex := c.levelMask.Apply(level).getHashIndex()
	if c.GetType() == PrunedCellType {
		prunedHashIndex := c.levelMask.getHashIndex()
		if hashIndex != prunedHashIndex {
			// stored in data of pruned cell
			return c.data[2+hashIndex*32 : 2+(hashIndex+1)*32]
		}
		hashIndex = 0
	}
	return c.hashes[hashIndex*32 : (hashIndex+1)*32]
}

func (c *Cell) getDepth(level int) uint16 {
	hashIndex := c.levelMask.Apply(level).getHashIndex()
	if c.GetType() == PrunedCellType {
		prunedHashIndex := c.levelMask.getHashIndex()
		if hashIndex != prunedHashIndex {
			off := 2 + 32*prunedHashIndex + hashIndex*2
			return binary.BigEndian.Uint16(c.data[off : off+2])
		}
		hashIndex = 0
	}
	return c.depthLevels[hashIndex]
}

// finalize derives the level mask and computes hashes.
func (c *Cell) finalize() error {
	if c.special {
		mask, err := c.exoticLevelMask()
		if err != nil {
			return err
		}
		c.levelMask = mask
	} else {
		var mask byte
		for _, ref := range c.refs {
			mask |= ref.levelMask.Mask
		}
		c.levelMask = LevelMask{Mask: mask}
	}
	return c.calculateHashes()
}
