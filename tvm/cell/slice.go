package cell

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/broxus/nekoton-go/address"
)

var (
	ErrUnderflow = errors.New("cell underflow")

	ErrNoMoreRefs = fmt.Errorf("%w: no more refs exists", ErrUnderflow)
)

var ErrNotEnoughData = func(has, need int) error {
	return fmt.Errorf("%w: not enough data in reader, need %d, has %d", ErrUnderflow, need, has)
}

// Slice is a read cursor over a window of a cell's bits and refs.
type Slice struct {
	cell *Cell

	bitsFrom, bitsTo uint
	refsFrom, refsTo int
}

func (c *Slice) MustLoadRef() *Slice {
	r, err := c.LoadRef()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadRef() (*Slice, error) {
	ref, err := c.LoadRefCell()
	if err != nil {
		return nil, err
	}
	return ref.BeginParse(), nil
}

func (c *Slice) PreloadRef() (*Slice, error) {
	ref, err := c.GetRef(0)
	if err != nil {
		return nil, err
	}
	return ref.BeginParse(), nil
}

func (c *Slice) MustLoadRefCell() *Cell {
	r, err := c.LoadRefCell()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadRefCell() (*Cell, error) {
	ref, err := c.GetRef(0)
	if err != nil {
		return nil, err
	}
	c.refsFrom++
	return ref, nil
}

// GetRef returns the i-th remaining ref without consuming it.
func (c *Slice) GetRef(i int) (*Cell, error) {
	if i < 0 || c.refsFrom+i >= c.refsTo {
		return nil, ErrNoMoreRefs
	}
	return c.cell.refs[c.refsFrom+i], nil
}

func (c *Slice) MustLoadMaybeRef() *Slice {
	r, err := c.LoadMaybeRef()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadMaybeRef returns nil slice when the maybe bit is 0.
func (c *Slice) LoadMaybeRef() (*Slice, error) {
	has, err := c.PreloadUInt(1)
	if err != nil {
		return nil, err
	}

	if has == 0 {
		c.bitsFrom++
		return nil, nil
	}

	if c.RefsNum() == 0 {
		return nil, ErrNoMoreRefs
	}

	c.bitsFrom++
	return c.LoadRef()
}

func (c *Slice) RefsNum() int {
	return c.refsTo - c.refsFrom
}

func (c *Slice) MustLoadCoins() uint64 {
	r, err := c.LoadCoins()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadCoins() (uint64, error) {
	value, err := c.LoadBigCoins()
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("%w: coins value does not fit uint64", ErrTooBigValue)
	}
	return value.Uint64(), nil
}

func (c *Slice) MustLoadBigCoins() *big.Int {
	r, err := c.LoadBigCoins()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBigCoins() (*big.Int, error) {
	return c.LoadVarUInt(16)
}

func (c *Slice) MustLoadUInt(sz uint) uint64 {
	res, err := c.LoadUInt(sz)
	if err != nil {
		panic(err)
	}
	return res
}

func (c *Slice) MustPreloadUInt(sz uint) uint64 {
	res, err := c.PreloadUInt(sz)
	if err != nil {
		panic(err)
	}
	return res
}

func (c *Slice) LoadUInt(sz uint) (uint64, error) {
	res, err := c.PreloadUInt(sz)
	if err != nil {
		return 0, err
	}
	c.bitsFrom += sz
	return res, nil
}

func (c *Slice) PreloadUInt(sz uint) (uint64, error) {
	return c.GetUInt(0, sz)
}

// GetUInt reads sz bits at offset from the current position without consuming them.
func (c *Slice) GetUInt(offset, sz uint) (uint64, error) {
	if sz > 64 {
		return 0, ErrTooBigSize
	}

	data, err := c.GetBits(offset, sz)
	if err != nil {
		return 0, err
	}

	var res uint64
	for _, b := range data {
		res = res<<8 | uint64(b)
	}
	return res >> (uint(len(data))*8 - sz), nil
}

func (c *Slice) MustLoadInt(sz uint) int64 {
	res, err := c.LoadInt(sz)
	if err != nil {
		panic(err)
	}
	return res
}

func (c *Slice) LoadInt(sz uint) (int64, error) {
	if sz > 64 {
		return 0, ErrTooBigSize
	}

	res, err := c.LoadBigInt(sz)
	if err != nil {
		return 0, err
	}
	return res.Int64(), nil
}

func (c *Slice) MustLoadBoolBit() bool {
	r, err := c.LoadBoolBit()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBoolBit() (bool, error) {
	res, err := c.LoadUInt(1)
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (c *Slice) MustLoadBigUInt(sz uint) *big.Int {
	r, err := c.LoadBigUInt(sz)
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) MustPreloadBigUInt(sz uint) *big.Int {
	r, err := c.PreloadBigUInt(sz)
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBigUInt(sz uint) (*big.Int, error) {
	if sz > 256 {
		return nil, ErrTooBigSize
	}

	res, err := c.preloadBigNumber(sz)
	if err != nil {
		return nil, err
	}
	c.bitsFrom += sz
	return res, nil
}

func (c *Slice) PreloadBigUInt(sz uint) (*big.Int, error) {
	if sz > 256 {
		return nil, ErrTooBigSize
	}
	return c.preloadBigNumber(sz)
}

func (c *Slice) preloadBigNumber(sz uint) (*big.Int, error) {
	data, err := c.GetBits(0, sz)
	if err != nil {
		return nil, err
	}

	value := new(big.Int).SetBytes(data)
	return value.Rsh(value, uint(len(data))*8-sz), nil
}

func (c *Slice) MustLoadBigInt(sz uint) *big.Int {
	r, err := c.LoadBigInt(sz)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadBigInt loads a two's complement integer, sz can be up to 257.
func (c *Slice) LoadBigInt(sz uint) (*big.Int, error) {
	if sz > 257 {
		return nil, ErrTooBigSize
	}

	u, err := c.preloadBigNumber(sz)
	if err != nil {
		return nil, err
	}
	c.bitsFrom += sz

	if sz > 0 && u.Bit(int(sz-1)) == 1 {
		u.Sub(u, new(big.Int).Lsh(big.NewInt(1), sz))
	}
	return u, nil
}

func (c *Slice) MustLoadVarUInt(sz uint) *big.Int {
	res, err := c.LoadVarUInt(sz)
	if err != nil {
		panic(err)
	}
	return res
}

// LoadVarUInt loads VarUInteger sz.
func (c *Slice) LoadVarUInt(sz uint) (*big.Int, error) {
	if sz < 2 {
		return nil, ErrTooBigSize
	}

	snap := *c
	ln, err := c.LoadUInt(uint(bits.Len(sz - 1)))
	if err != nil {
		return nil, err
	}

	value, err := c.LoadBigUInt(uint(ln * 8))
	if err != nil {
		*c = snap
		return nil, err
	}
	return value, nil
}

// LoadVarInt loads VarInteger sz.
func (c *Slice) LoadVarInt(sz uint) (*big.Int, error) {
	if sz < 2 {
		return nil, ErrTooBigSize
	}

	snap := *c
	ln, err := c.LoadUInt(uint(bits.Len(sz - 1)))
	if err != nil {
		return nil, err
	}

	value, err := c.LoadBigInt(uint(ln * 8))
	if err != nil {
		*c = snap
		return nil, err
	}
	return value, nil
}

func (c *Slice) MustLoadSlice(sz uint) []byte {
	s, err := c.LoadSlice(sz)
	if err != nil {
		panic(err)
	}
	return s
}

func (c *Slice) MustPreloadSlice(sz uint) []byte {
	s, err := c.PreloadSlice(sz)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadSlice loads sz bits, left aligned in the returned bytes.
func (c *Slice) LoadSlice(sz uint) ([]byte, error) {
	data, err := c.GetBits(0, sz)
	if err != nil {
		return nil, err
	}
	c.bitsFrom += sz
	return data, nil
}

func (c *Slice) PreloadSlice(sz uint) ([]byte, error) {
	return c.GetBits(0, sz)
}

// GetBits reads sz bits at offset from the current position without consuming them.
func (c *Slice) GetBits(offset, sz uint) ([]byte, error) {
	if offset+sz > c.BitsLeft() {
		return nil, ErrNotEnoughData(int(c.BitsLeft()), int(offset+sz))
	}
	return extractBits(c.cell.data, c.bitsFrom+offset, sz), nil
}

func extractBits(data []byte, from, sz uint) []byte {
	res := make([]byte, (sz+7)/8)
	if sz == 0 {
		return res
	}

	start := from / 8
	if shift := from % 8; shift == 0 {
		copy(res, data[start:])
	} else {
		for i := range res {
			idx := start + uint(i)
			b := data[idx] << shift
			if idx+1 < uint(len(data)) {
				b |= data[idx+1] >> (8 - shift)
			}
			res[i] = b
		}
	}

	if rem := sz % 8; rem != 0 {
		res[len(res)-1] &= 0xFF << (8 - rem)
	}
	return res
}

func (c *Slice) MustLoadAddr() *address.Address {
	a, err := c.LoadAddr()
	if err != nil {
		panic(err)
	}
	return a
}

// LoadAddr loads MsgAddress, anycast prefixes are skipped.
func (c *Slice) LoadAddr() (*address.Address, error) {
	snap := *c
	a, err := c.loadAddr()
	if err != nil {
		*c = snap
		return nil, err
	}
	return a, nil
}

func (c *Slice) loadAddr() (*address.Address, error) {
	typ, err := c.LoadUInt(2)
	if err != nil {
		return nil, err
	}

	switch typ {
	case 0:
		return address.NewAddressNone(), nil
	case 1:
		ln, err := c.LoadUInt(9)
		if err != nil {
			return nil, fmt.Errorf("failed to load len: %w", err)
		}

		data, err := c.LoadSlice(uint(ln))
		if err != nil {
			return nil, fmt.Errorf("failed to load addr data: %w", err)
		}

		return address.NewAddressExt(0, uint(ln), data), nil
	case 2:
		if err = c.skipAnycast(); err != nil {
			return nil, err
		}

		workchain, err := c.LoadInt(8)
		if err != nil {
			return nil, fmt.Errorf("failed to load workchain: %w", err)
		}

		data, err := c.LoadSlice(256)
		if err != nil {
			return nil, fmt.Errorf("failed to load addr data: %w", err)
		}

		return address.NewAddress(0, byte(workchain), data), nil
	default:
		if err = c.skipAnycast(); err != nil {
			return nil, err
		}

		ln, err := c.LoadUInt(9)
		if err != nil {
			return nil, fmt.Errorf("failed to load len: %w", err)
		}

		workchain, err := c.LoadInt(32)
		if err != nil {
			return nil, fmt.Errorf("failed to load workchain: %w", err)
		}

		data, err := c.LoadSlice(uint(ln))
		if err != nil {
			return nil, fmt.Errorf("failed to load addr data: %w", err)
		}

		return address.NewAddressVar(0, int32(workchain), uint(ln), data), nil
	}
}

func (c *Slice) skipAnycast() error {
	isAnycast, err := c.LoadBoolBit()
	if err != nil {
		return fmt.Errorf("failed to load anycast bit: %w", err)
	}

	if isAnycast {
		// depth:(#<= 30)
		depth, err := c.LoadUInt(5)
		if err != nil {
			return fmt.Errorf("failed to load depth: %w", err)
		}

		if err = c.Advance(uint(depth)); err != nil {
			return fmt.Errorf("failed to load prefix: %w", err)
		}
	}
	return nil
}

func (c *Slice) MustLoadStringSnake() string {
	a, err := c.LoadStringSnake()
	if err != nil {
		panic(err)
	}
	return a
}

func (c *Slice) MustLoadBinarySnake() []byte {
	a, err := c.LoadBinarySnake()
	if err != nil {
		panic(err)
	}
	return a
}

func (c *Slice) LoadStringSnake() (string, error) {
	a, err := c.LoadBinarySnake()
	if err != nil {
		return "", err
	}
	return string(a), nil
}

// LoadBinarySnake reads the rest of the slice and follows the first ref chain.
func (c *Slice) LoadBinarySnake() ([]byte, error) {
	var data []byte

	ref := c
	for {
		if ref.BitsLeft()%8 != 0 {
			return nil, fmt.Errorf("snake cell has %d bits, not a whole number of bytes", ref.BitsLeft())
		}

		b, err := ref.LoadSlice(ref.BitsLeft())
		if err != nil {
			return nil, err
		}
		data = append(data, b...)

		if ref.RefsNum() == 0 {
			break
		}

		ref, err = ref.LoadRef()
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}

func (c *Slice) MustLoadDict(keySz uint) *Dictionary {
	d, err := c.LoadDict(keySz)
	if err != nil {
		panic(err)
	}
	return d
}

// LoadDict loads HashmapE: maybe ref to the dictionary root.
func (c *Slice) LoadDict(keySz uint) (*Dictionary, error) {
	root, err := c.LoadMaybeRef()
	if err != nil {
		return nil, fmt.Errorf("failed to load ref for dict, err: %w", err)
	}

	if root == nil {
		return NewDict(keySz), nil
	}
	return root.ToDict(keySz)
}

// Advance skips sz bits.
func (c *Slice) Advance(sz uint) error {
	if sz > c.BitsLeft() {
		return ErrNotEnoughData(int(c.BitsLeft()), int(sz))
	}
	c.bitsFrom += sz
	return nil
}

// AdvanceRefs skips n refs.
func (c *Slice) AdvanceRefs(n int) error {
	if n < 0 || n > c.RefsNum() {
		return ErrNoMoreRefs
	}
	c.refsFrom += n
	return nil
}

// Shrink keeps only the first sz bits and refs refs of the remaining window.
func (c *Slice) Shrink(sz uint, refs int) error {
	if sz > c.BitsLeft() {
		return ErrNotEnoughData(int(c.BitsLeft()), int(sz))
	}
	if refs < 0 || refs > c.RefsNum() {
		return ErrNoMoreRefs
	}
	c.bitsTo = c.bitsFrom + sz
	c.refsTo = c.refsFrom + refs
	return nil
}

func (c *Slice) IsSpecial() bool {
	return c.cell.special
}

func (c *Slice) BitsLeft() uint {
	return c.bitsTo - c.bitsFrom
}

// BitsPosition returns the number of bits consumed from the underlying cell.
func (c *Slice) BitsPosition() uint {
	return c.bitsFrom
}

// RefsPosition returns the number of refs consumed from the underlying cell.
func (c *Slice) RefsPosition() int {
	return c.refsFrom
}

func (c *Slice) RestBits() (uint, []byte, error) {
	left := c.BitsLeft()
	data, err := c.LoadSlice(left)
	return left, data, err
}

func (c *Slice) MustToCell() *Cell {
	cl, err := c.ToCell()
	if err != nil {
		panic(err)
	}
	return cl
}

func (c *Slice) Copy() *Slice {
	cp := *c
	return &cp
}

func (c *Slice) ToBuilder() *Builder {
	b := BeginCell()
	b.MustStoreSlice(extractBits(c.cell.data, c.bitsFrom, c.BitsLeft()), c.BitsLeft())
	b.refs = append(b.refs, c.cell.refs[c.refsFrom:c.refsTo]...)
	return b
}

// ToCell builds a cell from the remaining window; an untouched special cell is returned as is.
func (c *Slice) ToCell() (*Cell, error) {
	if c.cell.special {
		if c.bitsFrom == 0 && c.refsFrom == 0 && c.bitsTo == c.cell.bitsSz && c.refsTo == len(c.cell.refs) {
			return c.cell, nil
		}
		return nil, fmt.Errorf("%w: partially read special cell can not be converted", ErrInvalidCell)
	}

	return c.ToBuilder().EndCell(), nil
}
