package cell

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"

	"github.com/broxus/nekoton-go/tvm/boc"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func (c *Cell) ToBOC() []byte {
	return c.ToBOCWithFlags(true)
}

func (c *Cell) ToBOCWithFlags(withCRC bool) []byte {
	return ToBOCWithFlags([]*Cell{c}, withCRC)
}

func ToBOCWithFlags(roots []*Cell, withCRC bool) []byte {
	return SerializeBOC(roots, false, withCRC)
}

// SerializeBOC produces a canonical bag of cells, equal trees always give equal bytes.
func SerializeBOC(roots []*Cell, withIndex, withCRC bool) []byte {
	if len(roots) == 0 {
		return nil
	}

	// recursively go through cells, build hash index and store unique in slice
	orderCells, index := flattenIndex(roots)

	cellSizeBytes := byteLen(uint64(len(orderCells)))

	var payload []byte
	offsets := make([]uint64, len(orderCells))
	for i, item := range orderCells {
		payload = item.cell.serialize(payload, index, cellSizeBytes)
		offsets[i] = uint64(len(payload))
	}

	sizeBytes := byteLen(uint64(len(payload)))

	// has_idx 1bit, hash_crc32 1bit,  has_cache_bits 1bit, flags 2bit, size_bytes 3 bit
	flags := byte(cellSizeBytes)
	if withIndex {
		flags |= 0b1_0_0_00_000
	}
	if withCRC {
		flags |= 0b0_1_0_00_000
	}

	data := make([]byte, 0, 16+len(payload))
	data = append(data, boc.Magic...)
	data = append(data, flags, byte(sizeBytes))
	data = appendDynInt(data, uint64(len(orderCells)), cellSizeBytes)
	data = appendDynInt(data, uint64(len(roots)), cellSizeBytes)

	// absent cells are never produced
	data = appendDynInt(data, 0, cellSizeBytes)
	data = appendDynInt(data, uint64(len(payload)), sizeBytes)

	for _, r := range roots {
		data = appendDynInt(data, index[r.HashKey()].index, cellSizeBytes)
	}

	if withIndex {
		for _, off := range offsets {
			data = appendDynInt(data, off, sizeBytes)
		}
	}

	data = append(data, payload...)

	if withCRC {
		data = binary.LittleEndian.AppendUint32(data, crc32.Checksum(data, crcTable))
	}

	return data
}

func (c *Cell) serialize(to []byte, index map[string]*idxItem, refSizeBytes int) []byte {
	d1, d2 := c.descriptors(c.levelMask)
	to = append(to, d1, d2)
	to = append(to, c.paddedData()...)

	for _, ref := range c.refs {
		to = appendDynInt(to, index[ref.HashKey()].index, refSizeBytes)
	}
	return to
}

func byteLen(val uint64) int {
	if val == 0 {
		return 1
	}
	return (bits.Len64(val) + 7) / 8
}

func appendDynInt(to []byte, val uint64, sz int) []byte {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], val)
	return append(to, data[8-sz:]...)
}
