package abi

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// TokensFromJSON reads values of params from a json object keyed by param names.
func TokensFromJSON(params []Param, raw []byte) ([]Token, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: tokens must be a json object: %v", ErrTypeMismatch, err)
	}
	return tokensFromObject(params, obj, 0)
}

func tokensFromObject(params []Param, obj map[string]json.RawMessage, depth int) ([]Token, error) {
	tokens := make([]Token, 0, len(params))
	for _, p := range params {
		raw, ok := obj[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: no value for %q", ErrTypeMismatch, p.Name)
		}

		v, err := valueFromJSON(p.Type, raw, depth)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p.Name, err)
		}
		tokens = append(tokens, Token{Name: p.Name, Value: v})
	}
	return tokens, nil
}

func valueFromJSON(t ParamType, raw json.RawMessage, depth int) (TokenValue, error) {
	if depth > MaxNestingDepth {
		return nil, ErrNestingTooDeep
	}

	switch t.Kind {
	case KindUint, KindInt, KindVarUint, KindVarInt:
		n, err := numberFromJSON(raw)
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case KindUint:
			return UintValue{Size: t.Size, Number: n}, nil
		case KindInt:
			return IntValue{Size: t.Size, Number: n}, nil
		case KindVarUint:
			return VarUintValue{Size: t.Size, Number: n}, nil
		}
		return VarIntValue{Size: t.Size, Number: n}, nil
	case KindBool:
		var v bool
		if err := unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return BoolValue(v), nil
	case KindTuple:
		var obj map[string]json.RawMessage
		if err := unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		tokens, err := tokensFromObject(t.Components, obj, depth+1)
		if err != nil {
			return nil, err
		}
		return TupleValue(tokens), nil
	case KindArray, KindFixedArray:
		var list []json.RawMessage
		if err := unmarshal(raw, &list); err != nil {
			return nil, err
		}

		items := make([]TokenValue, 0, len(list))
		for i, item := range list {
			v, err := valueFromJSON(*t.Elem, item, depth+1)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, v)
		}
		if t.Kind == KindFixedArray {
			return FixedArrayValue{Elem: *t.Elem, Items: items}, nil
		}
		return ArrayValue{Elem: *t.Elem, Items: items}, nil
	case KindMap:
		var pairs [][2]json.RawMessage
		if err := unmarshal(raw, &pairs); err != nil {
			return nil, err
		}

		res := MapValue{Key: *t.Key, Value: *t.Elem}
		for i, pair := range pairs {
			k, err := valueFromJSON(*t.Key, pair[0], depth+1)
			if err != nil {
				return nil, fmt.Errorf("key %d: %w", i, err)
			}
			v, err := valueFromJSON(*t.Elem, pair[1], depth+1)
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			res.Entries = append(res.Entries, MapEntry{Key: k, Value: v})
		}
		return res, nil
	case KindCell:
		var s string
		if err := unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return CellValue{Cell: cell.BeginCell().EndCell()}, nil
		}
		c, err := cell.DecodeBOC(s, cell.EncodingBase64)
		if err != nil {
			return nil, err
		}
		return CellValue{Cell: c}, nil
	case KindAddress:
		var s string
		if err := unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return AddressValue{Address: address.NewAddressNone()}, nil
		}
		addr, err := address.ParseAny(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return AddressValue{Address: addr}, nil
	case KindBytes, KindFixedBytes:
		data, err := hexFromJSON(raw)
		if err != nil {
			return nil, err
		}
		if t.Kind == KindFixedBytes {
			return FixedBytesValue(data), nil
		}
		return BytesValue(data), nil
	case KindString:
		var s string
		if err := unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return StringValue(s), nil
	case KindToken:
		n, err := numberFromJSON(raw)
		if err != nil {
			return nil, err
		}
		return TokensValue{Amount: tlb.FromNanoTON(n)}, nil
	case KindTime, KindExpire:
		n, err := numberFromJSON(raw)
		if err != nil {
			return nil, err
		}
		if !n.IsUint64() || (t.Kind == KindExpire && n.Uint64() > 0xFFFFFFFF) {
			return nil, outOfRange(t, n)
		}
		if t.Kind == KindTime {
			return TimeValue(n.Uint64()), nil
		}
		return ExpireValue(n.Uint64()), nil
	case KindPublicKey:
		if isNull(raw) {
			return PublicKeyValue{}, nil
		}
		key, err := hexFromJSON(raw)
		if err != nil {
			return nil, err
		}
		if len(key) == 0 {
			return PublicKeyValue{}, nil
		}
		return PublicKeyValue{Key: key}, nil
	case KindOptional:
		if isNull(raw) {
			return OptionalValue{Type: *t.Elem}, nil
		}
		v, err := valueFromJSON(*t.Elem, raw, depth+1)
		if err != nil {
			return nil, err
		}
		return OptionalValue{Type: *t.Elem, Value: v}, nil
	case KindRef:
		v, err := valueFromJSON(*t.Elem, raw, depth+1)
		if err != nil {
			return nil, err
		}
		return RefValue{Value: v}, nil
	}
	return nil, fmt.Errorf("%w: unknown type kind %d", ErrInvalidSchema, t.Kind)
}

func unmarshal(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// numberFromJSON accepts json numbers and decimal or 0x prefixed hex strings.
func numberFromJSON(raw json.RawMessage) (*big.Int, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		if err := unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
	}

	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")

	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits, base = digits[2:], 16
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" {
		return nil, fmt.Errorf("%w: bad number %s", ErrTypeMismatch, string(raw))
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func hexFromJSON(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := unmarshal(raw, &s); err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad hex: %v", ErrTypeMismatch, err)
	}
	return data, nil
}

// TokensToJSON writes tokens as a json object keyed by token names.
func TokensToJSON(tokens []Token) ([]byte, error) {
	obj, err := tokensToObject(tokens)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func tokensToObject(tokens []Token) (map[string]any, error) {
	obj := make(map[string]any, len(tokens))
	for _, t := range tokens {
		v, err := valueToJSON(t.Value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", t.Name, err)
		}
		obj[t.Name] = v
	}
	return obj, nil
}

func valueToJSON(v TokenValue) (any, error) {
	switch val := v.(type) {
	case UintValue:
		return val.Number.String(), nil
	case IntValue:
		return val.Number.String(), nil
	case VarUintValue:
		return val.Number.String(), nil
	case VarIntValue:
		return val.Number.String(), nil
	case BoolValue:
		return bool(val), nil
	case TupleValue:
		return tokensToObject(val)
	case ArrayValue:
		return listToJSON(val.Items)
	case FixedArrayValue:
		return listToJSON(val.Items)
	case CellValue:
		if val.Cell == nil {
			return "", nil
		}
		return base64.StdEncoding.EncodeToString(val.Cell.ToBOCWithFlags(false)), nil
	case MapValue:
		pairs := make([][2]any, 0, len(val.Entries))
		for _, e := range val.Entries {
			k, err := valueToJSON(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := valueToJSON(e.Value)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, [2]any{k, v})
		}
		return pairs, nil
	case AddressValue:
		if val.Address == nil || val.Address.IsAddrNone() {
			return "", nil
		}
		return val.Address.StringRaw(), nil
	case BytesValue:
		return hex.EncodeToString(val), nil
	case FixedBytesValue:
		return hex.EncodeToString(val), nil
	case StringValue:
		return string(val), nil
	case TokensValue:
		return val.Amount.Nano().String(), nil
	case TimeValue:
		return fmt.Sprint(uint64(val)), nil
	case ExpireValue:
		return uint32(val), nil
	case PublicKeyValue:
		if val.Key == nil {
			return nil, nil
		}
		return hex.EncodeToString(val.Key), nil
	case OptionalValue:
		if val.Value == nil {
			return nil, nil
		}
		return valueToJSON(val.Value)
	case RefValue:
		return valueToJSON(val.Value)
	}
	return nil, fmt.Errorf("%w: unsupported value %T", ErrTypeMismatch, v)
}

func listToJSON(items []TokenValue) ([]any, error) {
	res := make([]any, 0, len(items))
	for i, item := range items {
		v, err := valueToJSON(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		res = append(res, v)
	}
	return res, nil
}
