package abi

import (
	"crypto/ed25519"
	"fmt"
	"unicode/utf8"

	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

type decoder struct {
	layout       layout
	allowPartial bool
}

func newDecoder(v Version, allowPartial bool) decoder {
	return decoder{layout: v.layout(), allowPartial: allowPartial}
}

// UnpackValues decodes params from a chain of cells. In partial mode data left
// after the last param is ignored, otherwise it is an ErrIncompleteDecode.
func UnpackValues(params []Param, c *cell.Cell, version Version, allowPartial bool) ([]Token, error) {
	d := newDecoder(version, allowPartial)
	tokens, rest, err := d.params(params, c.BeginParse(), 0)
	if err != nil {
		return nil, err
	}
	if err = d.finish(rest); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (d decoder) params(params []Param, s *cell.Slice, depth int) ([]Token, *cell.Slice, error) {
	tokens := make([]Token, 0, len(params))
	for i, p := range params {
		v, next, err := d.value(p.Type, s, i == len(params)-1, depth)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode %q: %w", p.Name, err)
		}
		tokens = append(tokens, Token{Name: p.Name, Value: v})
		s = next
	}
	return tokens, s, nil
}

func (d decoder) finish(s *cell.Slice) error {
	if d.allowPartial || (s.BitsLeft() == 0 && s.RefsNum() == 0) {
		return nil
	}
	return fmt.Errorf("%w: %d bits and %d refs left", ErrIncompleteDecode, s.BitsLeft(), s.RefsNum())
}

// forBits moves to the continuation when current cell has no data left.
func (d decoder) forBits(s *cell.Slice) (*cell.Slice, error) {
	if s.BitsLeft() > 0 {
		return s, nil
	}
	if s.RefsNum() > 1 {
		return nil, fmt.Errorf("%w: cell has %d unread refs but no data", ErrIncompleteDecode, s.RefsNum())
	}
	return s.PreloadRef()
}

// loadRef reads a referenced cell, moving to the continuation when the only ref left is it.
func (d decoder) loadRef(s *cell.Slice, last bool) (*cell.Cell, *cell.Slice, error) {
	if s.RefsNum() == 1 {
		jump := false
		if d.layout.reserveLastRef {
			jump = s.RefsPosition()+s.RefsNum() == cell.MaxRefs
		} else {
			jump = !last && s.BitsLeft() == 0
		}

		if jump {
			next, err := s.PreloadRef()
			if err != nil {
				return nil, nil, err
			}
			s = next
		}
	}

	c, err := s.LoadRefCell()
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}

// inner decodes a whole standalone cell as a single value.
func (d decoder) inner(t ParamType, c *cell.Cell, depth int) (TokenValue, error) {
	v, rest, err := d.value(t, c.BeginParse(), true, depth)
	if err != nil {
		return nil, err
	}
	if err = d.finish(rest); err != nil {
		return nil, err
	}
	return v, nil
}

func (d decoder) value(t ParamType, s *cell.Slice, last bool, depth int) (TokenValue, *cell.Slice, error) {
	if depth > MaxNestingDepth {
		return nil, nil, ErrNestingTooDeep
	}

	switch t.Kind {
	case KindTuple:
		tokens := make(TupleValue, 0, len(t.Components))
		for i, c := range t.Components {
			v, next, err := d.value(c.Type, s, last && i == len(t.Components)-1, depth+1)
			if err != nil {
				return nil, nil, fmt.Errorf("component %q: %w", c.Name, err)
			}
			tokens = append(tokens, Token{Name: c.Name, Value: v})
			s = next
		}
		return tokens, s, nil
	case KindCell, KindBytes, KindFixedBytes, KindString, KindRef:
		c, next, err := d.loadRef(s, last)
		if err != nil {
			return nil, nil, err
		}
		v, err := d.refValue(t, c, depth)
		if err != nil {
			return nil, nil, err
		}
		return v, next, nil
	}

	s, err := d.forBits(s)
	if err != nil {
		return nil, nil, err
	}

	switch t.Kind {
	case KindUint:
		n, err := s.LoadBigUInt(uint(t.Size))
		if err != nil {
			return nil, nil, err
		}
		return UintValue{Size: t.Size, Number: n}, s, nil
	case KindInt:
		n, err := s.LoadBigInt(uint(t.Size))
		if err != nil {
			return nil, nil, err
		}
		return IntValue{Size: t.Size, Number: n}, s, nil
	case KindVarUint:
		n, err := s.LoadVarUInt(uint(t.Size))
		if err != nil {
			return nil, nil, err
		}
		if n.BitLen() > (t.Size-1)*8 {
			return nil, nil, outOfRange(t, n)
		}
		return VarUintValue{Size: t.Size, Number: n}, s, nil
	case KindVarInt:
		n, err := s.LoadVarInt(uint(t.Size))
		if err != nil {
			return nil, nil, err
		}
		if !cell.FitsSigned(n, uint(t.Size-1)*8) {
			return nil, nil, outOfRange(t, n)
		}
		return VarIntValue{Size: t.Size, Number: n}, s, nil
	case KindBool:
		v, err := s.LoadBoolBit()
		if err != nil {
			return nil, nil, err
		}
		return BoolValue(v), s, nil
	case KindArray:
		ln, err := s.LoadUInt(32)
		if err != nil {
			return nil, nil, err
		}
		items, err := d.arrayItems(*t.Elem, s, int(ln), depth)
		if err != nil {
			return nil, nil, err
		}
		return ArrayValue{Elem: *t.Elem, Items: items}, s, nil
	case KindFixedArray:
		items, err := d.arrayItems(*t.Elem, s, t.Size, depth)
		if err != nil {
			return nil, nil, err
		}
		return FixedArrayValue{Elem: *t.Elem, Items: items}, s, nil
	case KindMap:
		v, err := d.mapValue(t, s, depth)
		if err != nil {
			return nil, nil, err
		}
		return v, s, nil
	case KindAddress:
		addr, err := s.LoadAddr()
		if err != nil {
			return nil, nil, err
		}
		return AddressValue{Address: addr}, s, nil
	case KindToken:
		n, err := s.LoadBigCoins()
		if err != nil {
			return nil, nil, err
		}
		return TokensValue{Amount: tlb.FromNanoTON(n)}, s, nil
	case KindTime:
		v, err := s.LoadUInt(64)
		if err != nil {
			return nil, nil, err
		}
		return TimeValue(v), s, nil
	case KindExpire:
		v, err := s.LoadUInt(32)
		if err != nil {
			return nil, nil, err
		}
		return ExpireValue(v), s, nil
	case KindPublicKey:
		has, err := s.LoadBoolBit()
		if err != nil {
			return nil, nil, err
		}
		if !has {
			return PublicKeyValue{}, s, nil
		}
		key, err := s.LoadSlice(256)
		if err != nil {
			return nil, nil, err
		}
		return PublicKeyValue{Key: ed25519.PublicKey(key)}, s, nil
	case KindOptional:
		has, err := s.LoadBoolBit()
		if err != nil {
			return nil, nil, err
		}
		if !has {
			return OptionalValue{Type: *t.Elem}, s, nil
		}

		if t.Elem.isLarge() {
			c, next, err := d.loadRef(s, last)
			if err != nil {
				return nil, nil, err
			}
			v, err := d.inner(*t.Elem, c, depth+1)
			if err != nil {
				return nil, nil, err
			}
			return OptionalValue{Type: *t.Elem, Value: v}, next, nil
		}

		v, next, err := d.value(*t.Elem, s, last, depth+1)
		if err != nil {
			return nil, nil, err
		}
		return OptionalValue{Type: *t.Elem, Value: v}, next, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown type kind %d", ErrInvalidSchema, t.Kind)
}

func (d decoder) refValue(t ParamType, c *cell.Cell, depth int) (TokenValue, error) {
	switch t.Kind {
	case KindCell:
		return CellValue{Cell: c}, nil
	case KindRef:
		v, err := d.inner(*t.Elem, c, depth+1)
		if err != nil {
			return nil, err
		}
		return RefValue{Value: v}, nil
	}

	data, err := c.BeginParse().LoadBinarySnake()
	if err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindFixedBytes:
		if len(data) != t.Size {
			return nil, fmt.Errorf("%w: %s expects %d bytes, got %d", ErrLengthMismatch, t, t.Size, len(data))
		}
		return FixedBytesValue(data), nil
	case KindString:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: string is not valid utf-8", ErrTypeMismatch)
		}
		return StringValue(data), nil
	}
	return BytesValue(data), nil
}

func (d decoder) dictValue(keyBits uint, t ParamType, value *cell.Cell, depth int) (TokenValue, error) {
	if valueInRef(keyBits, t) {
		ref, err := value.Ref(0)
		if err != nil {
			return nil, err
		}
		value = ref
	}
	return d.inner(t, value, depth+1)
}

func (d decoder) arrayItems(elem ParamType, s *cell.Slice, ln, depth int) ([]TokenValue, error) {
	dict, err := s.LoadDict(32)
	if err != nil {
		return nil, err
	}
	if dict.Size() != ln {
		return nil, fmt.Errorf("%w: expected %d items, dictionary has %d", ErrLengthMismatch, ln, dict.Size())
	}

	items := make([]TokenValue, 0, ln)
	for i, kv := range dict.All() {
		if idx := kv.Key.BeginParse().MustLoadUInt(32); idx != uint64(i) {
			return nil, fmt.Errorf("%w: array has no item %d", ErrLengthMismatch, i)
		}
		v, err := d.dictValue(32, elem, kv.Value, depth)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return items, nil
}

func (d decoder) mapValue(t ParamType, s *cell.Slice, depth int) (MapValue, error) {
	keyBits, err := t.Key.mapKeyBits()
	if err != nil {
		return MapValue{}, err
	}

	dict, err := s.LoadDict(keyBits)
	if err != nil {
		return MapValue{}, err
	}

	res := MapValue{Key: *t.Key, Value: *t.Elem}
	for _, kv := range dict.All() {
		key, err := d.mapKey(*t.Key, kv.Key)
		if err != nil {
			return MapValue{}, err
		}
		v, err := d.dictValue(keyBits, *t.Elem, kv.Value, depth)
		if err != nil {
			return MapValue{}, err
		}
		res.Entries = append(res.Entries, MapEntry{Key: key, Value: v})
	}
	return res, nil
}

func (d decoder) mapKey(t ParamType, key *cell.Cell) (TokenValue, error) {
	s := key.BeginParse()
	switch t.Kind {
	case KindUint:
		n, err := s.LoadBigUInt(uint(t.Size))
		if err != nil {
			return nil, err
		}
		return UintValue{Size: t.Size, Number: n}, nil
	case KindInt:
		n, err := s.LoadBigInt(uint(t.Size))
		if err != nil {
			return nil, err
		}
		return IntValue{Size: t.Size, Number: n}, nil
	case KindAddress:
		addr, err := s.LoadAddr()
		if err != nil {
			return nil, err
		}
		return AddressValue{Address: addr}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, t)
}
