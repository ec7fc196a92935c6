package boc

import "bytes"

type BocFlags struct {
	HasIndex     bool
	HasCrc32c    bool
	HasCacheBits bool
}

var (
	Magic = []byte{0xB5, 0xEE, 0x9C, 0x72}

	// legacy headers with fixed flags
	MagicIndexed      = []byte{0x68, 0xFF, 0x65, 0xF3}
	MagicIndexedCrc32 = []byte{0xAC, 0xC3, 0xA7, 0x28}
)

// ParseFlags splits the generic header flags byte into flags and cell reference size.
func ParseFlags(data byte) (BocFlags, int) {
	return BocFlags{
		HasIndex:     hasBit(data, 7),
		HasCrc32c:    hasBit(data, 6),
		HasCacheBits: hasBit(data, 5),
	}, int(data & 0b00000111)
}

// ParseHeader detects the header kind by magic, generic is true when
// a flags byte follows the magic.
func ParseHeader(magic []byte) (flags BocFlags, generic bool, ok bool) {
	switch {
	case bytes.Equal(magic, Magic):
		return BocFlags{}, true, true
	case bytes.Equal(magic, MagicIndexed):
		return BocFlags{HasIndex: true}, false, true
	case bytes.Equal(magic, MagicIndexedCrc32):
		return BocFlags{HasIndex: true, HasCrc32c: true}, false, true
	}
	return BocFlags{}, false, false
}

func hasBit(n byte, pos uint) bool {
	return n&(1<<pos) != 0
}
