package cell

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrKeySizeMismatch = errors.New("dictionary key size mismatch")

// Dictionary is a HashmapE with fixed key size.
type Dictionary struct {
	storage map[string]*HashmapKV
	keySz   uint
}

type HashmapKV struct {
	Key   *Cell
	Value *Cell

	keyBits []byte
}

func NewDict(keySz uint) *Dictionary {
	return &Dictionary{
		storage: map[string]*HashmapKV{},
		keySz:   keySz,
	}
}

func (c *Cell) AsDict(keySz uint) (*Dictionary, error) {
	return c.BeginParse().ToDict(keySz)
}

// ToDict parses the slice as a dictionary root (Hashmap, not HashmapE).
func (c *Slice) ToDict(keySz uint) (*Dictionary, error) {
	d := NewDict(keySz)
	if err := d.mapInner(keySz, c.Copy(), BeginCell()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dictionary) KeySize() uint {
	return d.keySz
}

func (d *Dictionary) Size() int {
	return len(d.storage)
}

func (d *Dictionary) IsEmpty() bool {
	return len(d.storage) == 0
}

func (d *Dictionary) keyBits(key *Cell) ([]byte, error) {
	if key.BitsSize() != d.keySz {
		return nil, fmt.Errorf("%w: want %d bits, got %d", ErrKeySizeMismatch, d.keySz, key.BitsSize())
	}
	return key.BeginParse().LoadSlice(d.keySz)
}

func (d *Dictionary) Set(key, value *Cell) error {
	data, err := d.keyBits(key)
	if err != nil {
		return err
	}

	if value == nil {
		delete(d.storage, string(data))
		return nil
	}

	d.storage[string(data)] = &HashmapKV{
		Key:     key,
		Value:   value,
		keyBits: data,
	}
	return nil
}

func (d *Dictionary) SetIntKey(key *big.Int, value *Cell) error {
	b := BeginCell()
	if err := b.StoreBigInt(key, d.keySz); err != nil {
		return err
	}
	return d.Set(b.EndCell(), value)
}

func (d *Dictionary) Get(key *Cell) *Cell {
	data, err := d.keyBits(key)
	if err != nil {
		return nil
	}

	v := d.storage[string(data)]
	if v == nil {
		return nil
	}
	return v.Value
}

func (d *Dictionary) GetByIntKey(key *big.Int) *Cell {
	b := BeginCell()
	if err := b.StoreBigInt(key, d.keySz); err != nil {
		return nil
	}
	return d.Get(b.EndCell())
}

func (d *Dictionary) Delete(key *Cell) error {
	return d.Set(key, nil)
}

// All returns entries sorted ascending by key bits.
func (d *Dictionary) All() []*HashmapKV {
	all := maps.Values(d.storage)
	slices.SortFunc(all, func(a, b *HashmapKV) int {
		return bytes.Compare(a.keyBits, b.keyBits)
	})
	return all
}

// ToCell serializes the dictionary root, nil for an empty dictionary.
func (d *Dictionary) ToCell() (*Cell, error) {
	if len(d.storage) == 0 {
		return nil, nil
	}

	b, err := d.buildNode(d.All(), 0, d.keySz)
	if err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (d *Dictionary) buildNode(items []*HashmapKV, offset, m uint) (*Builder, error) {
	b := BeginCell()

	first := items[0].keyBits
	if len(items) == 1 {
		if err := storeLabel(b, first, offset, m, m); err != nil {
			return nil, err
		}
		if err := b.StoreBuilder(items[0].Value.ToBuilder()); err != nil {
			return nil, fmt.Errorf("dictionary value does not fit into leaf: %w", err)
		}
		return b, nil
	}

	// items are sorted, so common prefix of all is a prefix of first and last
	last := items[len(items)-1].keyBits
	var prefix uint
	for prefix < m && keyBit(first, offset+prefix) == keyBit(last, offset+prefix) {
		prefix++
	}

	if err := storeLabel(b, first, offset, prefix, m); err != nil {
		return nil, err
	}

	split := offset + prefix
	idx, _ := slices.BinarySearchFunc(items, true, func(kv *HashmapKV, _ bool) int {
		if keyBit(kv.keyBits, split) {
			return 0
		}
		return -1
	})

	for _, part := range [][]*HashmapKV{items[:idx], items[idx:]} {
		child, err := d.buildNode(part, split+1, m-prefix-1)
		if err != nil {
			return nil, err
		}
		if err = b.StoreRef(child.EndCell()); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func keyBit(key []byte, pos uint) bool {
	return key[pos/8]&(0x80>>(pos%8)) != 0
}

// storeLabel writes the shortest of hml_short, hml_long and hml_same.
func storeLabel(b *Builder, key []byte, from, ln, m uint) error {
	k := uint(bits.Len(m))
	label := extractBits(key, from, ln)

	same := ln > 1
	for i := uint(1); same && i < ln; i++ {
		same = keyBit(label, i) == keyBit(label, 0)
	}

	shortLen, longLen, sameLen := 2+2*ln, 2+k+ln, 3+k
	switch {
	case same && sameLen < shortLen && sameLen < longLen:
		b.MustStoreUInt(0b11, 2).MustStoreBoolBit(keyBit(label, 0))
		return b.StoreUInt(uint64(ln), k)
	case shortLen <= longLen:
		if b.BitsUsed()+shortLen > MaxBits {
			return ErrNotFit1023
		}
		b.MustStoreBoolBit(false)
		for i := uint(0); i < ln; i++ {
			b.MustStoreBoolBit(true)
		}
		b.MustStoreBoolBit(false)
		return b.StoreSlice(label, ln)
	default:
		b.MustStoreUInt(0b10, 2).MustStoreUInt(uint64(ln), k)
		return b.StoreSlice(label, ln)
	}
}

func (d *Dictionary) mapInner(leftKeySz uint, loader *Slice, keyPrefix *Builder) error {
	sz, err := loadLabel(leftKeySz, loader, keyPrefix)
	if err != nil {
		return err
	}

	if sz > leftKeySz {
		return fmt.Errorf("%w: dictionary label is longer than key", ErrInvalidCell)
	}

	// until key size is not equals we go deeper
	if sz < leftKeySz {
		for bit := uint64(0); bit <= 1; bit++ {
			branch, err := loader.LoadRef()
			if err != nil {
				return err
			}

			err = d.mapInner(leftKeySz-(1+sz), branch, keyPrefix.Copy().MustStoreUInt(bit, 1))
			if err != nil {
				return err
			}
		}
		return nil
	}

	keyCell := keyPrefix.EndCell()
	value, err := loader.ToCell()
	if err != nil {
		return err
	}

	data := keyCell.BeginParse().MustLoadSlice(d.keySz)
	d.storage[string(data)] = &HashmapKV{
		Key:     keyCell,
		Value:   value,
		keyBits: data,
	}
	return nil
}

func loadLabel(sz uint, loader *Slice, key *Builder) (uint, error) {
	first, err := loader.LoadUInt(1)
	if err != nil {
		return 0, err
	}

	// hml_short$0
	if first == 0 {
		// Unary, while 1, add to ln
		ln := uint(0)
		for {
			bit, err := loader.LoadUInt(1)
			if err != nil {
				return 0, err
			}

			if bit == 0 {
				break
			}
			ln++
		}

		keyBits, err := loader.LoadSlice(ln)
		if err != nil {
			return 0, err
		}
		return ln, key.StoreSlice(keyBits, ln)
	}

	second, err := loader.LoadUInt(1)
	if err != nil {
		return 0, err
	}

	bitsLen := uint(bits.Len(sz))

	// hml_long$10
	if second == 0 {
		ln, err := loader.LoadUInt(bitsLen)
		if err != nil {
			return 0, err
		}

		keyBits, err := loader.LoadSlice(uint(ln))
		if err != nil {
			return 0, err
		}
		return uint(ln), key.StoreSlice(keyBits, uint(ln))
	}

	// hml_same$11
	bitType, err := loader.LoadUInt(1)
	if err != nil {
		return 0, err
	}

	ln, err := loader.LoadUInt(bitsLen)
	if err != nil {
		return 0, err
	}

	fill := byte(0x00)
	if bitType == 1 {
		fill = 0xFF
	}
	return uint(ln), key.StoreSlice(bytes.Repeat([]byte{fill}, int(ln/8)+1), uint(ln))
}
