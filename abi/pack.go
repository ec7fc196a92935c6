package abi

import (
	"fmt"
	"math/big"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// unit is a serialized value which must not be split between cells.
type unit struct {
	b       *cell.Builder
	maxBits uint
	maxRefs int
}

func newUnit(b *cell.Builder, t ParamType) unit {
	return unit{b: b, maxBits: t.MaxBits(), maxRefs: t.MaxRefs()}
}

type packer struct {
	version Version
	layout  layout
}

func newPacker(v Version) packer {
	return packer{version: v, layout: v.layout()}
}

// PackValues serializes tokens of the given params into a chain of cells.
func PackValues(params []Param, tokens []Token, version Version) (*cell.Cell, error) {
	p := newPacker(version)
	units, err := p.params(params, tokens)
	if err != nil {
		return nil, err
	}
	b, err := p.chain(units)
	if err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (p packer) params(params []Param, tokens []Token) ([]unit, error) {
	if len(params) != len(tokens) {
		return nil, fmt.Errorf("%w: expected %d tokens, got %d", ErrTypeMismatch, len(params), len(tokens))
	}

	var units []unit
	for i, param := range params {
		if tokens[i].Name != "" && param.Name != "" && tokens[i].Name != param.Name {
			return nil, fmt.Errorf("%w: expected token %q at position %d, got %q", ErrTypeMismatch, param.Name, i, tokens[i].Name)
		}
		u, err := p.value(param.Type, tokens[i].Value, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to pack %q: %w", param.Name, err)
		}
		units = append(units, u...)
	}
	return units, nil
}

// chain links units into cells, the continuation is always the last ref.
func (p packer) chain(units []unit) (*cell.Builder, error) {
	cells := []*cell.Builder{cell.BeginCell()}
	var remBits uint = cell.MaxBits
	remRefs := cell.MaxRefs
	if p.layout.reserveLastRef {
		remRefs--
	}

	for i, u := range units {
		needBits, needRefs := u.b.BitsUsed(), u.b.RefsUsed()
		if p.layout.maxSizeBudget {
			needBits, needRefs = u.maxBits, u.maxRefs
		}

		switch {
		case remBits < needBits || remRefs < needRefs:
			// does not fit, next cell
		case needRefs > 0 && remRefs == needRefs && !p.layout.reserveLastRef:
			// the unit takes the last ref, so the rest must fit without refs
			restBits := remBits - needBits
			fits := true
			for _, next := range units[i+1:] {
				nb, nr := next.b.BitsUsed(), next.b.RefsUsed()
				if p.layout.maxSizeBudget {
					nb, nr = next.maxBits, next.maxRefs
				}
				if nr > 0 || nb > restBits {
					fits = false
					break
				}
				restBits -= nb
			}
			if fits {
				if err := p.append(cells[len(cells)-1], u); err != nil {
					return nil, err
				}
				remBits, remRefs = remBits-needBits, 0
				continue
			}
		default:
			if err := p.append(cells[len(cells)-1], u); err != nil {
				return nil, err
			}
			remBits, remRefs = remBits-needBits, remRefs-needRefs
			continue
		}

		cells = append(cells, cell.BeginCell())
		if err := p.append(cells[len(cells)-1], u); err != nil {
			return nil, err
		}
		remBits, remRefs = cell.MaxBits-needBits, cell.MaxRefs-needRefs
		if p.layout.reserveLastRef {
			remRefs--
		}
	}

	for i := len(cells) - 1; i > 0; i-- {
		if err := cells[i-1].StoreRef(cells[i].EndCell()); err != nil {
			return nil, fmt.Errorf("failed to link cells chain: %w", err)
		}
	}
	return cells[0], nil
}

func (p packer) append(b *cell.Builder, u unit) error {
	if err := b.StoreBuilder(u.b); err != nil {
		return fmt.Errorf("value does not fit into cell: %w", err)
	}
	return nil
}

// packInto packs a standalone value into its own cell chain.
func (p packer) packInto(t ParamType, v TokenValue, depth int) (*cell.Builder, error) {
	units, err := p.value(t, v, depth)
	if err != nil {
		return nil, err
	}
	return p.chain(units)
}

func (p packer) value(t ParamType, v TokenValue, depth int) ([]unit, error) {
	if depth > MaxNestingDepth {
		return nil, ErrNestingTooDeep
	}
	if v == nil {
		return nil, fmt.Errorf("%w: no value for %s", ErrTypeMismatch, t)
	}

	if t.Kind == KindTuple {
		tv, ok := v.(TupleValue)
		if !ok {
			return nil, mismatch(t, v)
		}
		if len(tv) != len(t.Components) {
			return nil, fmt.Errorf("%w: tuple %s has %d components, got %d", ErrLengthMismatch, t, len(t.Components), len(tv))
		}

		var units []unit
		for i, c := range t.Components {
			u, err := p.value(c.Type, tv[i].Value, depth+1)
			if err != nil {
				return nil, fmt.Errorf("component %q: %w", c.Name, err)
			}
			units = append(units, u...)
		}
		return units, nil
	}

	b := cell.BeginCell()
	if err := p.store(b, t, v, depth); err != nil {
		return nil, err
	}
	return []unit{newUnit(b, t)}, nil
}

func (p packer) store(b *cell.Builder, t ParamType, v TokenValue, depth int) error {
	switch t.Kind {
	case KindUint:
		n, err := uintNumber(t, v)
		if err != nil {
			return err
		}
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return outOfRange(t, n)
		}
		return b.StoreBigUInt(n, uint(t.Size))
	case KindInt:
		n, err := intNumber(t, v)
		if err != nil {
			return err
		}
		if !cell.FitsSigned(n, uint(t.Size)) {
			return outOfRange(t, n)
		}
		return b.StoreBigInt(n, uint(t.Size))
	case KindVarUint:
		n, err := varUintNumber(t, v)
		if err != nil {
			return err
		}
		if n.Sign() < 0 || n.BitLen() > (t.Size-1)*8 {
			return outOfRange(t, n)
		}
		return b.StoreVarUInt(n, uint(t.Size))
	case KindVarInt:
		val, ok := v.(VarIntValue)
		if !ok || val.Size != t.Size || val.Number == nil {
			return mismatch(t, v)
		}
		if !cell.FitsSigned(val.Number, uint(t.Size-1)*8) {
			return outOfRange(t, val.Number)
		}
		return b.StoreVarInt(val.Number, uint(t.Size))
	case KindBool:
		val, ok := v.(BoolValue)
		if !ok {
			return mismatch(t, v)
		}
		return b.StoreBoolBit(bool(val))
	case KindArray:
		val, ok := v.(ArrayValue)
		if !ok {
			return mismatch(t, v)
		}
		dict, err := p.arrayDict(*t.Elem, val.Items, depth)
		if err != nil {
			return err
		}
		if err = b.StoreUInt(uint64(len(val.Items)), 32); err != nil {
			return err
		}
		return b.StoreDict(dict)
	case KindFixedArray:
		val, ok := v.(FixedArrayValue)
		if !ok {
			return mismatch(t, v)
		}
		if len(val.Items) != t.Size {
			return fmt.Errorf("%w: %s expects %d items, got %d", ErrLengthMismatch, t, t.Size, len(val.Items))
		}
		dict, err := p.arrayDict(*t.Elem, val.Items, depth)
		if err != nil {
			return err
		}
		return b.StoreDict(dict)
	case KindMap:
		val, ok := v.(MapValue)
		if !ok {
			return mismatch(t, v)
		}
		dict, err := p.mapDict(t, val.Entries, depth)
		if err != nil {
			return err
		}
		return b.StoreDict(dict)
	case KindCell:
		val, ok := v.(CellValue)
		if !ok {
			return mismatch(t, v)
		}
		c := val.Cell
		if c == nil {
			c = cell.BeginCell().EndCell()
		}
		return b.StoreRef(c)
	case KindAddress:
		val, ok := v.(AddressValue)
		if !ok {
			return mismatch(t, v)
		}
		return b.StoreAddr(val.Address)
	case KindBytes:
		val, ok := v.(BytesValue)
		if !ok {
			return mismatch(t, v)
		}
		return p.storeBytes(b, val)
	case KindFixedBytes:
		val, ok := v.(FixedBytesValue)
		if !ok {
			return mismatch(t, v)
		}
		if len(val) != t.Size {
			return fmt.Errorf("%w: %s expects %d bytes, got %d", ErrLengthMismatch, t, t.Size, len(val))
		}
		return p.storeBytes(b, val)
	case KindString:
		val, ok := v.(StringValue)
		if !ok {
			return mismatch(t, v)
		}
		return p.storeBytes(b, []byte(val))
	case KindToken:
		val, ok := v.(TokensValue)
		if !ok {
			return mismatch(t, v)
		}
		n := val.Amount.Nano()
		if n.Sign() < 0 || n.BitLen() > 120 {
			return outOfRange(t, n)
		}
		return b.StoreBigCoins(n)
	case KindTime:
		val, ok := v.(TimeValue)
		if !ok {
			return mismatch(t, v)
		}
		return b.StoreUInt(uint64(val), 64)
	case KindExpire:
		val, ok := v.(ExpireValue)
		if !ok {
			return mismatch(t, v)
		}
		return b.StoreUInt(uint64(val), 32)
	case KindPublicKey:
		val, ok := v.(PublicKeyValue)
		if !ok {
			return mismatch(t, v)
		}
		if val.Key == nil {
			return b.StoreBoolBit(false)
		}
		if len(val.Key) != 32 {
			return fmt.Errorf("%w: public key must be 32 bytes, got %d", ErrLengthMismatch, len(val.Key))
		}
		b.MustStoreBoolBit(true)
		return b.StoreSlice(val.Key, 256)
	case KindOptional:
		val, ok := v.(OptionalValue)
		if !ok {
			return mismatch(t, v)
		}
		if val.Value == nil {
			return b.StoreBoolBit(false)
		}
		b.MustStoreBoolBit(true)

		if t.Elem.isLarge() {
			inner, err := p.packInto(*t.Elem, val.Value, depth+1)
			if err != nil {
				return err
			}
			return b.StoreRef(inner.EndCell())
		}

		units, err := p.value(*t.Elem, val.Value, depth+1)
		if err != nil {
			return err
		}
		for _, u := range units {
			if err = b.StoreBuilder(u.b); err != nil {
				return err
			}
		}
		return nil
	case KindRef:
		val, ok := v.(RefValue)
		if !ok {
			return mismatch(t, v)
		}
		inner, err := p.packInto(*t.Elem, val.Value, depth+1)
		if err != nil {
			return err
		}
		return b.StoreRef(inner.EndCell())
	}
	return fmt.Errorf("%w: unknown type kind %d", ErrInvalidSchema, t.Kind)
}

func (p packer) dictValue(keyBits uint, t ParamType, v TokenValue, depth int) (*cell.Cell, error) {
	inner, err := p.packInto(t, v, depth+1)
	if err != nil {
		return nil, err
	}
	if valueInRef(keyBits, t) {
		return cell.BeginCell().MustStoreRef(inner.EndCell()).EndCell(), nil
	}
	return inner.EndCell(), nil
}

func (p packer) arrayDict(elem ParamType, items []TokenValue, depth int) (*cell.Dictionary, error) {
	dict := cell.NewDict(32)
	for i, item := range items {
		value, err := p.dictValue(32, elem, item, depth)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err = dict.Set(cell.BeginCell().MustStoreUInt(uint64(i), 32).EndCell(), value); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func (p packer) mapDict(t ParamType, entries []MapEntry, depth int) (*cell.Dictionary, error) {
	keyBits, err := t.Key.mapKeyBits()
	if err != nil {
		return nil, err
	}

	dict := cell.NewDict(keyBits)
	for i, e := range entries {
		key, err := mapKey(*t.Key, e.Key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		if dict.Get(key) != nil {
			return nil, fmt.Errorf("%w: entry %d", ErrDuplicateKey, i)
		}

		value, err := p.dictValue(keyBits, *t.Elem, e.Value, depth)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		if err = dict.Set(key, value); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func mapKey(t ParamType, v TokenValue) (*cell.Cell, error) {
	b := cell.BeginCell()
	switch t.Kind {
	case KindUint:
		n, err := uintNumber(t, v)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, outOfRange(t, n)
		}
		b.MustStoreBigUInt(n, uint(t.Size))
	case KindInt:
		n, err := intNumber(t, v)
		if err != nil {
			return nil, err
		}
		if !cell.FitsSigned(n, uint(t.Size)) {
			return nil, outOfRange(t, n)
		}
		b.MustStoreBigInt(n, uint(t.Size))
	case KindAddress:
		val, ok := v.(AddressValue)
		if !ok {
			return nil, mismatch(t, v)
		}
		if val.Address == nil || val.Address.Type() != address.StdAddress {
			return nil, fmt.Errorf("%w: only std addresses can be map keys", ErrUnsupportedKey)
		}
		if err := b.StoreAddr(val.Address); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, t)
	}
	return b.EndCell(), nil
}

func (p packer) storeBytes(b *cell.Builder, data []byte) error {
	if !p.layout.bytesRemainderFirst {
		c := cell.BeginCell()
		if err := c.StoreBinarySnake(data); err != nil {
			return err
		}
		return b.StoreRef(c.EndCell())
	}

	c, err := bytesChain(data)
	if err != nil {
		return err
	}
	return b.StoreRef(c)
}

// bytesChain puts len(data) % 127 bytes into the head cell,
// every next cell of the chain is full.
func bytesChain(data []byte) (*cell.Cell, error) {
	const chunk = cell.MaxBits / 8

	starts := []int{0}
	for i := len(data) % chunk; i < len(data); i += chunk {
		if i > 0 {
			starts = append(starts, i)
		}
	}

	var next *cell.Cell
	end := len(data)
	for i := len(starts) - 1; i >= 0; i-- {
		b := cell.BeginCell()
		if err := b.StoreSlice(data[starts[i]:end], uint(end-starts[i])*8); err != nil {
			return nil, err
		}
		if next != nil {
			if err := b.StoreRef(next); err != nil {
				return nil, err
			}
		}
		next = b.EndCell()
		end = starts[i]
	}
	return next, nil
}

// uintNumber accepts token amounts for 64 and 128 bit integers as well.
func uintNumber(t ParamType, v TokenValue) (*big.Int, error) {
	switch val := v.(type) {
	case UintValue:
		if val.Size == t.Size && val.Number != nil {
			return val.Number, nil
		}
	case TokensValue:
		if t.Size == 64 || t.Size == 128 {
			return val.Amount.Nano(), nil
		}
	}
	return nil, mismatch(t, v)
}

func intNumber(t ParamType, v TokenValue) (*big.Int, error) {
	switch val := v.(type) {
	case IntValue:
		if val.Size == t.Size && val.Number != nil {
			return val.Number, nil
		}
	case TokensValue:
		if t.Size == 64 || t.Size == 128 {
			return val.Amount.Nano(), nil
		}
	}
	return nil, mismatch(t, v)
}

func varUintNumber(t ParamType, v TokenValue) (*big.Int, error) {
	switch val := v.(type) {
	case VarUintValue:
		if val.Size == t.Size && val.Number != nil {
			return val.Number, nil
		}
	case TokensValue:
		if t.Size == 16 {
			return val.Amount.Nano(), nil
		}
	}
	return nil, mismatch(t, v)
}

func mismatch(t ParamType, v TokenValue) error {
	return fmt.Errorf("%w: expected %s, got %T", ErrTypeMismatch, t, v)
}

func outOfRange(t ParamType, n *big.Int) error {
	return fmt.Errorf("%w: %s does not fit into %s", ErrValueOutOfRange, n, t)
}
