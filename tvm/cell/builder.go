package cell

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/broxus/nekoton-go/address"
)

var (
	ErrOverflow = errors.New("cell overflow")

	ErrNotFit1023  = fmt.Errorf("%w: cell data size should fit into 1023 bits", ErrOverflow)
	ErrTooMuchRefs = fmt.Errorf("%w: too much refs", ErrOverflow)

	ErrTooBigValue     = errors.New("too big value")
	ErrNegative        = errors.New("value should be non negative")
	ErrTooBigSize      = errors.New("too big size")
	ErrSmallSlice      = errors.New("too small slice for this size")
	ErrRefCannotBeNil  = errors.New("ref cannot be nil")
	ErrAddressNotValid = errors.New("address type is not supported")
)

type Builder struct {
	bitsSz uint
	data   []byte

	// store it as slice of pointers to make indexing logic cleaner on parse,
	// from outside it should always come as object to not have problems
	refs []*Cell
}

func BeginCell() *Builder {
	return &Builder{}
}

func (b *Builder) MustStoreCoins(value uint64) *Builder {
	err := b.StoreCoins(value)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreCoins(value uint64) error {
	return b.StoreBigCoins(new(big.Int).SetUint64(value))
}

func (b *Builder) MustStoreBigCoins(value *big.Int) *Builder {
	err := b.StoreBigCoins(value)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBigCoins stores value as VarUInteger 16.
func (b *Builder) StoreBigCoins(value *big.Int) error {
	return b.StoreVarUInt(value, 16)
}

func (b *Builder) MustStoreUInt(value uint64, sz uint) *Builder {
	err := b.StoreUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreUInt(value uint64, sz uint) error {
	if sz > 64 {
		return b.StoreBigUInt(new(big.Int).SetUint64(value), sz)
	}

	if sz < 64 && value>>sz != 0 {
		return fmt.Errorf("%w: %d does not fit into %d bits", ErrTooBigValue, value, sz)
	}

	if sz == 0 {
		return nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value<<(64-sz))

	return b.StoreSlice(buf[:], sz)
}

func (b *Builder) MustStoreInt(value int64, sz uint) *Builder {
	err := b.StoreInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreInt(value int64, sz uint) error {
	if sz > 64 {
		return b.StoreBigInt(big.NewInt(value), sz)
	}

	if sz == 0 {
		if value != 0 {
			return fmt.Errorf("%w: %d does not fit into 0 bits", ErrTooBigValue, value)
		}
		return nil
	}

	if sz < 64 {
		limit := int64(1) << (sz - 1)
		if value < -limit || value >= limit {
			return fmt.Errorf("%w: %d does not fit into %d signed bits", ErrTooBigValue, value, sz)
		}
	}

	u := uint64(value)
	if sz < 64 {
		u &= (uint64(1) << sz) - 1
	}
	return b.StoreUInt(u, sz)
}

func (b *Builder) MustStoreBoolBit(value bool) *Builder {
	err := b.StoreBoolBit(value)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBoolBit(value bool) error {
	var i uint64
	if value {
		i = 1
	}
	return b.StoreUInt(i, 1)
}

func (b *Builder) MustStoreBigUInt(value *big.Int, sz uint) *Builder {
	err := b.StoreBigUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBigUInt(value *big.Int, sz uint) error {
	if sz > 256 {
		return ErrTooBigSize
	}

	if value.Sign() == -1 {
		return ErrNegative
	}

	if uint(value.BitLen()) > sz {
		return fmt.Errorf("%w: %s does not fit into %d bits", ErrTooBigValue, value.String(), sz)
	}

	return b.storeBig(value, sz)
}

func (b *Builder) MustStoreBigInt(value *big.Int, sz uint) *Builder {
	err := b.StoreBigInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBigInt stores value in two's complement form, sz can be up to 257.
func (b *Builder) StoreBigInt(value *big.Int, sz uint) error {
	if sz > 257 {
		return ErrTooBigSize
	}

	if !FitsSigned(value, sz) {
		return fmt.Errorf("%w: %s does not fit into %d signed bits", ErrTooBigValue, value.String(), sz)
	}

	if value.Sign() < 0 {
		value = new(big.Int).Add(value, new(big.Int).Lsh(big.NewInt(1), sz))
	}

	return b.storeBig(value, sz)
}

// FitsSigned reports whether value is representable as a sz-bit two's complement integer.
func FitsSigned(value *big.Int, sz uint) bool {
	if sz == 0 {
		return value.Sign() == 0
	}
	if value.Sign() >= 0 {
		return uint(value.BitLen()) < sz
	}
	// -x fits when x-1 < 2^(sz-1)
	abs := new(big.Int).Neg(value)
	abs.Sub(abs, big.NewInt(1))
	return uint(abs.BitLen()) < sz
}

// storeBig stores a non negative value that is known to fit sz bits.
func (b *Builder) storeBig(value *big.Int, sz uint) error {
	if sz == 0 {
		return nil
	}

	const width = 264
	buf := new(big.Int).Lsh(value, width-sz).FillBytes(make([]byte, width/8))
	return b.StoreSlice(buf, sz)
}

func (b *Builder) MustStoreVarUInt(value *big.Int, sz uint) *Builder {
	err := b.StoreVarUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreVarUInt stores VarUInteger sz: byte length prefix then value bytes.
func (b *Builder) StoreVarUInt(value *big.Int, sz uint) error {
	if sz < 2 {
		return ErrTooBigSize
	}
	if value.Sign() == -1 {
		return ErrNegative
	}

	ln := uint((value.BitLen() + 7) >> 3)
	if ln >= sz {
		return fmt.Errorf("%w: %s does not fit into VarUInteger %d", ErrTooBigValue, value.String(), sz)
	}

	lnBits := uint(bits.Len(sz - 1))
	if b.bitsSz+lnBits+ln*8 > MaxBits {
		return ErrNotFit1023
	}

	if err := b.StoreUInt(uint64(ln), lnBits); err != nil {
		return err
	}
	return b.storeBig(value, ln*8)
}

func (b *Builder) MustStoreVarInt(value *big.Int, sz uint) *Builder {
	err := b.StoreVarInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreVarInt stores VarInteger sz: byte length prefix then signed value bytes.
func (b *Builder) StoreVarInt(value *big.Int, sz uint) error {
	if sz < 2 {
		return ErrTooBigSize
	}

	ln := uint(0)
	for !FitsSigned(value, ln*8) {
		ln++
		if ln >= sz {
			return fmt.Errorf("%w: %s does not fit into VarInteger %d", ErrTooBigValue, value.String(), sz)
		}
	}

	lnBits := uint(bits.Len(sz - 1))
	if b.bitsSz+lnBits+ln*8 > MaxBits {
		return ErrNotFit1023
	}

	if err := b.StoreUInt(uint64(ln), lnBits); err != nil {
		return err
	}
	return b.StoreBigInt(value, ln*8)
}

func (b *Builder) MustStoreAddr(addr *address.Address) *Builder {
	err := b.StoreAddr(addr)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreAddr stores MsgAddress, nil is stored as addr_none.
func (b *Builder) StoreAddr(addr *address.Address) error {
	if addr == nil {
		return b.StoreUInt(0, 2)
	}

	switch addr.Type() {
	case address.NoneAddress:
		return b.StoreUInt(0, 2)
	case address.ExtAddress:
		if b.bitsSz+2+9+addr.BitsLen() > MaxBits {
			return ErrNotFit1023
		}
		b.MustStoreUInt(0b01, 2).MustStoreUInt(uint64(addr.BitsLen()), 9)
		return b.StoreSlice(addr.Data(), addr.BitsLen())
	case address.StdAddress:
		if b.bitsSz+2+1+8+256 > MaxBits {
			return ErrNotFit1023
		}
		// addr_std$10 anycast:(Maybe Anycast) workchain_id:int8 address:bits256
		b.MustStoreUInt(0b10, 2).MustStoreBoolBit(false)
		if err := b.StoreInt(int64(addr.Workchain()), 8); err != nil {
			return err
		}
		return b.StoreSlice(addr.Data(), 256)
	case address.VarAddress:
		if b.bitsSz+2+1+9+32+addr.BitsLen() > MaxBits {
			return ErrNotFit1023
		}
		b.MustStoreUInt(0b11, 2).MustStoreBoolBit(false).MustStoreUInt(uint64(addr.BitsLen()), 9)
		b.MustStoreInt(int64(addr.Workchain()), 32)
		return b.StoreSlice(addr.Data(), addr.BitsLen())
	}
	return ErrAddressNotValid
}

func (b *Builder) MustStoreStringSnake(str string) *Builder {
	err := b.StoreStringSnake(str)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreStringSnake(str string) error {
	return b.StoreBinarySnake([]byte(str))
}

func (b *Builder) MustStoreBinarySnake(data []byte) *Builder {
	err := b.StoreBinarySnake(data)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBinarySnake fills the rest of the builder with data and continues
// in a chain of refs, 127 bytes per cell.
func (b *Builder) StoreBinarySnake(data []byte) error {
	var f func(space int) (*Builder, error)
	f = func(space int) (*Builder, error) {
		if len(data) < space {
			space = len(data)
		}

		c := BeginCell()
		if err := c.StoreSlice(data, uint(space)*8); err != nil {
			return nil, err
		}

		data = data[space:]

		if len(data) > 0 {
			ref, err := f(MaxBits / 8)
			if err != nil {
				return nil, err
			}

			if err = c.StoreRef(ref.EndCell()); err != nil {
				return nil, err
			}
		}

		return c, nil
	}

	snake, err := f(int(b.BitsLeft() / 8))
	if err != nil {
		return err
	}

	return b.StoreBuilder(snake)
}

func (b *Builder) MustStoreDict(dict *Dictionary) *Builder {
	err := b.StoreDict(dict)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreDict stores HashmapE: maybe ref to the dictionary root.
func (b *Builder) StoreDict(dict *Dictionary) error {
	if dict == nil {
		return b.StoreMaybeRef(nil)
	}

	c, err := dict.ToCell()
	if err != nil {
		return fmt.Errorf("failed to serialize dictionary: %w", err)
	}
	return b.StoreMaybeRef(c)
}

func (b *Builder) MustStoreMaybeRef(ref *Cell) *Builder {
	err := b.StoreMaybeRef(ref)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreMaybeRef(ref *Cell) error {
	if ref == nil {
		return b.StoreBoolBit(false)
	}

	if b.bitsSz+1 > MaxBits {
		return ErrNotFit1023
	}
	if len(b.refs) >= MaxRefs {
		return ErrTooMuchRefs
	}

	b.MustStoreBoolBit(true)
	b.refs = append(b.refs, ref)
	return nil
}

func (b *Builder) MustStoreRef(ref *Cell) *Builder {
	err := b.StoreRef(ref)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreRef(ref *Cell) error {
	if ref == nil {
		return ErrRefCannotBeNil
	}

	if len(b.refs) >= MaxRefs {
		return ErrTooMuchRefs
	}

	b.refs = append(b.refs, ref)
	return nil
}

func (b *Builder) MustStoreSlice(bytes []byte, sz uint) *Builder {
	err := b.StoreSlice(bytes, sz)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreSlice appends the first sz bits of bytes.
func (b *Builder) StoreSlice(bytes []byte, sz uint) error {
	if sz == 0 {
		return nil
	}

	if uint(len(bytes))*8 < sz {
		return ErrSmallSlice
	}

	if b.bitsSz+sz > MaxBits {
		return ErrNotFit1023
	}

	b.appendBits(bytes, sz)
	return nil
}

func (b *Builder) appendBits(src []byte, sz uint) {
	off := b.bitsSz
	need := int((off + sz + 7) / 8)
	for len(b.data) < need {
		b.data = append(b.data, 0)
	}

	if off%8 == 0 {
		copy(b.data[off/8:], src[:(sz+7)/8])
		if rem := (off + sz) % 8; rem != 0 {
			b.data[need-1] &= 0xFF << (8 - rem)
		}
	} else {
		for i := uint(0); i < sz; i++ {
			if src[i/8]&(0x80>>(i%8)) != 0 {
				p := off + i
				b.data[p/8] |= 0x80 >> (p % 8)
			}
		}
	}
	b.bitsSz += sz
}

func (b *Builder) MustStoreBuilder(builder *Builder) *Builder {
	err := b.StoreBuilder(builder)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBuilder appends bits and refs of another builder, all or nothing.
func (b *Builder) StoreBuilder(builder *Builder) error {
	if len(b.refs)+len(builder.refs) > MaxRefs {
		return ErrTooMuchRefs
	}

	if b.bitsSz+builder.bitsSz > MaxBits {
		return ErrNotFit1023
	}

	if builder.bitsSz > 0 {
		b.appendBits(builder.data, builder.bitsSz)
	}
	b.refs = append(b.refs, builder.refs...)
	return nil
}

func (b *Builder) BitsUsed() uint {
	return b.bitsSz
}

func (b *Builder) BitsLeft() uint {
	return MaxBits - b.bitsSz
}

func (b *Builder) RefsUsed() int {
	return len(b.refs)
}

func (b *Builder) RefsLeft() int {
	return MaxRefs - len(b.refs)
}

func (b *Builder) Copy() *Builder {
	return &Builder{
		bitsSz: b.bitsSz,
		data:   append([]byte{}, b.data...),
		refs:   append([]*Cell{}, b.refs...),
	}
}

// EndCell finalizes an ordinary cell.
func (b *Builder) EndCell() *Cell {
	c := b.newCell(false)
	if err := c.finalize(); err != nil {
		// ordinary cells can only fail on depth overflow
		panic(err)
	}
	return c
}

// EndExoticCell finalizes a special cell, validating its layout.
func (b *Builder) EndExoticCell() (*Cell, error) {
	c := b.newCell(true)
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *Builder) newCell(special bool) *Cell {
	return &Cell{
		special: special,
		bitsSz:  b.bitsSz,
		data:    append([]byte{}, b.data[:(b.bitsSz+7)/8]...),
		refs:    append([]*Cell{}, b.refs...),
	}
}
