package tlb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tvm/cell"
)

var ErrUnsupportedCode = errors.New("unsupported code structure")

// code of contracts with a selector which keeps the salt in the second ref
var selectorCodePrefix = []byte{0x8a, 0xdb, 0x35}

type TickTock struct {
	Tick bool
	Tock bool
}

type StateInit struct {
	SplitDepth *uint8
	Special    *TickTock
	Code       *cell.Cell
	Data       *cell.Cell
	Lib        *cell.Dictionary
}

func (s *StateInit) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell()

	b.MustStoreBoolBit(s.SplitDepth != nil)
	if s.SplitDepth != nil {
		if err := b.StoreUInt(uint64(*s.SplitDepth), 5); err != nil {
			return nil, fmt.Errorf("bad split depth: %w", err)
		}
	}

	b.MustStoreBoolBit(s.Special != nil)
	if s.Special != nil {
		b.MustStoreBoolBit(s.Special.Tick).MustStoreBoolBit(s.Special.Tock)
	}

	b.MustStoreMaybeRef(s.Code).MustStoreMaybeRef(s.Data)
	if err := b.StoreDict(s.Lib); err != nil {
		return nil, fmt.Errorf("failed to store libraries: %w", err)
	}
	return b.EndCell(), nil
}

func (s *StateInit) LoadFromCell(loader *cell.Slice) error {
	var res StateInit

	has, err := loader.LoadBoolBit()
	if err != nil {
		return err
	}
	if has {
		depth, err := loader.LoadUInt(5)
		if err != nil {
			return err
		}
		d := uint8(depth)
		res.SplitDepth = &d
	}

	if has, err = loader.LoadBoolBit(); err != nil {
		return err
	}
	if has {
		tt, err := loader.LoadUInt(2)
		if err != nil {
			return err
		}
		res.Special = &TickTock{Tick: tt&0b10 != 0, Tock: tt&0b01 != 0}
	}

	for _, ref := range []**cell.Cell{&res.Code, &res.Data} {
		sl, err := loader.LoadMaybeRef()
		if err != nil {
			return err
		}
		if sl != nil {
			if *ref, err = sl.ToCell(); err != nil {
				return err
			}
		}
	}

	if res.Lib, err = loader.LoadDict(256); err != nil {
		return fmt.Errorf("failed to load libraries: %w", err)
	}
	if res.Lib.IsEmpty() {
		res.Lib = nil
	}

	*s = res
	return nil
}

// CalcAddress returns the address of a contract deployed with this state.
func (s *StateInit) CalcAddress(workchain int32) (*address.Address, error) {
	c, err := s.ToCell()
	if err != nil {
		return nil, err
	}
	return address.NewAddress(0, byte(workchain), c.Hash()), nil
}

// SetCodeSalt puts salt into the code, replacing the previous one.
func (s *StateInit) SetCodeSalt(salt *cell.Cell) error {
	if s.Code == nil || !isSelectorCode(s.Code) {
		return ErrUnsupportedCode
	}

	sl := s.Code.BeginParse()
	bits, data, err := sl.RestBits()
	if err != nil {
		return err
	}

	selector, err := s.Code.Ref(0)
	if err != nil {
		return fmt.Errorf("%w: no selector dictionary", ErrUnsupportedCode)
	}

	s.Code = cell.BeginCell().
		MustStoreSlice(data, bits).
		MustStoreRef(selector).
		MustStoreRef(salt).
		EndCell()
	return nil
}

// GetCodeSalt returns the code salt, nil when the code has no salt.
func (s *StateInit) GetCodeSalt() (*cell.Cell, error) {
	if s.Code == nil || !isSelectorCode(s.Code) {
		return nil, ErrUnsupportedCode
	}
	if s.Code.RefsNum() < 2 {
		return nil, nil
	}
	return s.Code.Ref(1)
}

func isSelectorCode(code *cell.Cell) bool {
	if code.BitsSize() < uint(len(selectorCodePrefix)*8) {
		return false
	}
	prefix, err := code.BeginParse().LoadSlice(uint(len(selectorCodePrefix) * 8))
	return err == nil && bytes.Equal(prefix, selectorCodePrefix)
}
