package cell

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/broxus/nekoton-go/tvm/boc"
)

var ErrInvalidBOC = errors.New("invalid boc")

func MustFromBOC(data []byte) *Cell {
	c, err := FromBOC(data)
	if err != nil {
		panic(err)
	}
	return c
}

func FromBOC(data []byte) (*Cell, error) {
	cells, err := FromBOCMultiRoot(data)
	if err != nil {
		return nil, err
	}

	return cells[0], nil
}

func FromBOCMultiRoot(data []byte) ([]*Cell, error) {
	roots, err := fromBOCMultiRoot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBOC, err)
	}
	return roots, nil
}

func fromBOCMultiRoot(data []byte) ([]*Cell, error) {
	r := newReader(data)

	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, errors.New("too short to be a boc")
	}

	flags, generic, ok := boc.ParseHeader(magic)
	if !ok {
		return nil, errors.New("invalid boc magic header")
	}

	head, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	cellNumSizeBytes := int(head)
	if generic {
		flags, cellNumSizeBytes = boc.ParseFlags(head)
	}
	if cellNumSizeBytes < 1 || cellNumSizeBytes > 4 {
		return nil, fmt.Errorf("invalid cell num size %d", cellNumSizeBytes)
	}

	dataSizeBytes, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if dataSizeBytes < 1 || dataSizeBytes > 8 {
		return nil, fmt.Errorf("invalid data size bytes %d", dataSizeBytes)
	}

	cellsNum, err := r.ReadDynInt(cellNumSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read cells num: %w", err)
	}

	rootsNum, err := r.ReadDynInt(cellNumSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read roots num: %w", err)
	}

	absentNum, err := r.ReadDynInt(cellNumSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read absent num: %w", err)
	}

	if rootsNum == 0 || rootsNum > cellsNum {
		return nil, fmt.Errorf("invalid roots num %d for %d cells", rootsNum, cellsNum)
	}
	if absentNum != 0 {
		return nil, errors.New("absent cells are not supported")
	}

	dataLen, err := r.ReadDynInt(int(dataSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read data len: %w", err)
	}

	left := uint64(r.LeftLen())
	if dataLen > left {
		return nil, fmt.Errorf("data len %d is bigger than boc, has %d", dataLen, left)
	}

	// each cell takes at least 2 bytes
	if cellsNum*2 > dataLen {
		return nil, fmt.Errorf("%d cells can not fit into %d bytes", cellsNum, dataLen)
	}

	// counts are checked against the input before anything is allocated
	need := dataLen
	if generic {
		need += rootsNum * uint64(cellNumSizeBytes)
	}
	if flags.HasIndex {
		need += cellsNum * uint64(dataSizeBytes)
	}
	if need > left {
		return nil, fmt.Errorf("boc header wants %d bytes, has %d", need, left)
	}

	rootIndexes := make([]uint64, rootsNum)
	for i := range rootIndexes {
		if !generic {
			rootIndexes[i] = uint64(i)
			continue
		}

		rootIndexes[i], err = r.ReadDynInt(cellNumSizeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to read root index: %w", err)
		}
		if rootIndexes[i] >= cellsNum {
			return nil, fmt.Errorf("root index %d is out of range", rootIndexes[i])
		}
	}

	if flags.HasIndex {
		if _, err = r.ReadBytes(int(cellsNum) * int(dataSizeBytes)); err != nil {
			return nil, fmt.Errorf("failed to skip index: %w", err)
		}
	}

	payload, err := r.ReadBytes(int(dataLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read payload, want %d, has %d", dataLen, r.LeftLen())
	}

	if flags.HasCrc32c {
		if r.LeftLen() != 4 {
			return nil, fmt.Errorf("expected 4 bytes of checksum, got %d", r.LeftLen())
		}

		crc := crc32.Checksum(data[:len(data)-4], crcTable)
		if binary.LittleEndian.Uint32(data[len(data)-4:]) != crc {
			return nil, errors.New("checksum not matches")
		}
	} else if r.LeftLen() != 0 {
		return nil, fmt.Errorf("%d unexpected trailing bytes", r.LeftLen())
	}

	cells, err := parseCells(int(cellsNum), cellNumSizeBytes, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}

	roots := make([]*Cell, len(rootIndexes))
	for i, idx := range rootIndexes {
		roots[i] = cells[idx]
	}
	return roots, nil
}

type rawCell struct {
	special bool
	mask    LevelMask
	bitsSz  uint
	data    []byte
	refs    []int
}

func parseCells(cellsNum, refSzBytes int, data []byte) ([]*Cell, error) {
	r := newReader(data)

	raw := make([]rawCell, cellsNum)
	for i := 0; i < cellsNum; i++ {
		d1, err := r.ReadByte()
		if err != nil {
			return nil, errors.New("failed to parse cell refs num, corrupted data")
		}

		// len(self.refs) + self.is_special() * 8 + self.level() * 32
		refsNum := int(d1 & 0b111)
		if refsNum > MaxRefs {
			return nil, fmt.Errorf("cell %d has too many refs: %d", i, refsNum)
		}

		rc := rawCell{
			special: d1&0b1000 != 0,
			mask:    LevelMask{Mask: d1 >> 5},
		}

		ln, err := r.ReadByte()
		if err != nil {
			return nil, errors.New("failed to parse cell length, corrupted data")
		}

		if d1&0b10000 != 0 {
			// stored hashes and depths are recomputed anyway
			if _, err = r.ReadBytes((rc.mask.getHashIndex() + 1) * (32 + 2)); err != nil {
				return nil, errors.New("failed to skip cell hashes, corrupted data")
			}
		}

		payload, err := r.ReadBytes(int(ln/2 + ln%2))
		if err != nil {
			return nil, errors.New("failed to parse cell payload, corrupted data")
		}
		rc.data = append([]byte{}, payload...)
		rc.bitsSz = uint(len(payload)) * 8

		if ln%2 != 0 {
			last := rc.data[len(rc.data)-1]
			if last == 0 {
				return nil, fmt.Errorf("cell %d has no completion tag", i)
			}

			// strip the completion tag
			for bit := uint(0); bit < 8; bit++ {
				if last&(1<<bit) != 0 {
					rc.bitsSz -= bit + 1
					rc.data[len(rc.data)-1] &^= 1 << bit
					break
				}
			}
		}

		if rc.bitsSz > MaxBits {
			return nil, fmt.Errorf("cell %d has too many bits: %d", i, rc.bitsSz)
		}

		rc.refs = make([]int, refsNum)
		for y := range rc.refs {
			id, err := r.ReadDynInt(refSzBytes)
			if err != nil {
				return nil, errors.New("failed to parse cell references, corrupted data")
			}

			// behind reference is not allowed
			if id <= uint64(i) || id >= uint64(cellsNum) {
				return nil, fmt.Errorf("cell %d has invalid ref index %d", i, id)
			}
			rc.refs[y] = int(id)
		}

		raw[i] = rc
	}

	if r.LeftLen() != 0 {
		return nil, fmt.Errorf("%d bytes left after cells", r.LeftLen())
	}

	// refs always point forward, so children are built first
	cells := make([]*Cell, cellsNum)
	for i := cellsNum - 1; i >= 0; i-- {
		rc := raw[i]

		c := &Cell{
			special: rc.special,
			bitsSz:  rc.bitsSz,
			data:    rc.data,
			refs:    make([]*Cell, len(rc.refs)),
		}
		for y, id := range rc.refs {
			c.refs[y] = cells[id]
		}

		if err := c.finalize(); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}

		if c.levelMask != rc.mask {
			return nil, fmt.Errorf("cell %d level mask mismatch, stored %d, computed %d", i, rc.mask.Mask, c.levelMask.Mask)
		}

		cells[i] = c
	}

	return cells, nil
}
