package abi

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/broxus/nekoton-go/tvm/cell"
)

// MaxNestingDepth bounds how deep composite types can be nested.
const MaxNestingDepth = 32

type Kind uint8

const (
	KindUint Kind = iota + 1
	KindInt
	KindVarUint
	KindVarInt
	KindBool
	KindTuple
	KindArray
	KindFixedArray
	KindCell
	KindMap
	KindAddress
	KindBytes
	KindFixedBytes
	KindString
	KindToken
	KindTime
	KindExpire
	KindPublicKey
	KindOptional
	KindRef

	kindCount
)

var kindNames = [...]string{
	KindUint:       "uint",
	KindInt:        "int",
	KindVarUint:    "varuint",
	KindVarInt:     "varint",
	KindBool:       "bool",
	KindTuple:      "tuple",
	KindArray:      "array",
	KindFixedArray: "fixedarray",
	KindCell:       "cell",
	KindMap:        "map",
	KindAddress:    "address",
	KindBytes:      "bytes",
	KindFixedBytes: "fixedbytes",
	KindString:     "string",
	KindToken:      "gram",
	KindTime:       "time",
	KindExpire:     "expire",
	KindPublicKey:  "pubkey",
	KindOptional:   "optional",
	KindRef:        "ref",
}

func (k Kind) String() string {
	if k == 0 || k >= kindCount {
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Param is a named abi parameter.
type Param struct {
	Name string
	Type ParamType
}

// ParamType describes an abi type. Elem is the element of arrays, the value
// of maps and the inner type of optionals and refs. Size is the bit size of
// integers, the byte size of var integers and the length of fixed arrays and bytes.
type ParamType struct {
	Kind       Kind
	Size       int
	Elem       *ParamType
	Key        *ParamType
	Components []Param
}

func Uint(n int) ParamType       { return ParamType{Kind: KindUint, Size: n} }
func Int(n int) ParamType        { return ParamType{Kind: KindInt, Size: n} }
func VarUint(n int) ParamType    { return ParamType{Kind: KindVarUint, Size: n} }
func VarInt(n int) ParamType     { return ParamType{Kind: KindVarInt, Size: n} }
func Bool() ParamType            { return ParamType{Kind: KindBool} }
func Cell() ParamType            { return ParamType{Kind: KindCell} }
func Address() ParamType         { return ParamType{Kind: KindAddress} }
func Bytes() ParamType           { return ParamType{Kind: KindBytes} }
func FixedBytes(n int) ParamType { return ParamType{Kind: KindFixedBytes, Size: n} }
func String() ParamType          { return ParamType{Kind: KindString} }
func TokenAmount() ParamType     { return ParamType{Kind: KindToken} }
func Time() ParamType            { return ParamType{Kind: KindTime} }
func Expire() ParamType          { return ParamType{Kind: KindExpire} }
func PublicKey() ParamType       { return ParamType{Kind: KindPublicKey} }

func Tuple(components ...Param) ParamType {
	return ParamType{Kind: KindTuple, Components: components}
}

func Array(elem ParamType) ParamType {
	return ParamType{Kind: KindArray, Elem: &elem}
}

func FixedArray(elem ParamType, n int) ParamType {
	return ParamType{Kind: KindFixedArray, Elem: &elem, Size: n}
}

func Map(key, value ParamType) ParamType {
	return ParamType{Kind: KindMap, Key: &key, Elem: &value}
}

func Optional(inner ParamType) ParamType {
	return ParamType{Kind: KindOptional, Elem: &inner}
}

func Ref(inner ParamType) ParamType {
	return ParamType{Kind: KindRef, Elem: &inner}
}

// String returns the canonical type name used in function signatures.
func (t ParamType) String() string {
	switch t.Kind {
	case KindUint, KindInt, KindVarUint, KindVarInt, KindFixedBytes:
		return t.Kind.String() + strconv.Itoa(t.Size)
	case KindTuple:
		types := make([]string, len(t.Components))
		for i, c := range t.Components {
			types[i] = c.Type.String()
		}
		return "(" + strings.Join(types, ",") + ")"
	case KindArray:
		return t.Elem.String() + "[]"
	case KindFixedArray:
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case KindMap:
		return "map(" + t.Key.String() + "," + t.Elem.String() + ")"
	case KindOptional, KindRef:
		return t.Kind.String() + "(" + t.Elem.String() + ")"
	}
	return t.Kind.String()
}

// Validate checks type attributes and the nesting depth.
func (t ParamType) Validate() error {
	return t.validate(0)
}

func (t ParamType) validate(depth int) error {
	if depth > MaxNestingDepth {
		return fmt.Errorf("%w: more than %d levels", ErrNestingTooDeep, MaxNestingDepth)
	}

	switch t.Kind {
	case KindUint, KindInt:
		if t.Size < 1 || t.Size > 256 {
			return fmt.Errorf("%w: %s size should be in 1..256", ErrInvalidSchema, t.Kind)
		}
	case KindVarUint, KindVarInt:
		if t.Size < 2 || t.Size > 32 {
			return fmt.Errorf("%w: %s size should be in 2..32", ErrInvalidSchema, t.Kind)
		}
	case KindFixedBytes:
		if t.Size < 0 {
			return fmt.Errorf("%w: negative fixedbytes size", ErrInvalidSchema)
		}
	case KindTuple:
		for _, c := range t.Components {
			if err := c.Type.validate(depth + 1); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
		}
	case KindArray, KindOptional, KindRef:
		if t.Elem == nil {
			return fmt.Errorf("%w: %s without inner type", ErrInvalidSchema, t.Kind)
		}
		return t.Elem.validate(depth + 1)
	case KindFixedArray:
		if t.Elem == nil || t.Size < 0 {
			return fmt.Errorf("%w: bad fixed array", ErrInvalidSchema)
		}
		return t.Elem.validate(depth + 1)
	case KindMap:
		if t.Key == nil || t.Elem == nil {
			return fmt.Errorf("%w: map without key or value type", ErrInvalidSchema)
		}
		switch t.Key.Kind {
		case KindUint, KindInt, KindAddress:
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedKey, t.Key)
		}
		if err := t.Key.validate(depth + 1); err != nil {
			return err
		}
		return t.Elem.validate(depth + 1)
	case KindBool, KindCell, KindAddress, KindBytes, KindString, KindToken, KindTime, KindExpire, KindPublicKey:
	default:
		return fmt.Errorf("%w: unknown type kind %d", ErrInvalidSchema, t.Kind)
	}
	return nil
}

const (
	addressMaxBits = 591
	tokenMaxBits   = 124
	pubkeyMaxBits  = 257
	arrayMaxBits   = 33

	// dictionary label overhead accounted for inline values
	dictLabelMaxBits = 12
)

func varIntMaxBits(size int) uint {
	return uint(bits.Len(uint(size-1))) + uint(size-1)*8
}

// MaxBits is the biggest number of bits a value of this type can occupy in a cell.
func (t ParamType) MaxBits() uint {
	switch t.Kind {
	case KindUint, KindInt:
		return uint(t.Size)
	case KindVarUint, KindVarInt:
		return varIntMaxBits(t.Size)
	case KindBool:
		return 1
	case KindArray:
		return arrayMaxBits
	case KindFixedArray, KindMap:
		return 1
	case KindCell, KindBytes, KindFixedBytes, KindString, KindRef:
		return 0
	case KindAddress:
		return addressMaxBits
	case KindToken:
		return tokenMaxBits
	case KindTime:
		return 64
	case KindExpire:
		return 32
	case KindPublicKey:
		return pubkeyMaxBits
	case KindOptional:
		if t.Elem.isLarge() {
			return 1
		}
		return 1 + t.Elem.MaxBits()
	case KindTuple:
		var sz uint
		for _, c := range t.Components {
			sz += c.Type.MaxBits()
		}
		return sz
	}
	return 0
}

// MaxRefs is the biggest number of refs a value of this type can occupy in a cell.
func (t ParamType) MaxRefs() int {
	switch t.Kind {
	case KindArray, KindFixedArray, KindMap, KindCell, KindBytes, KindFixedBytes, KindString, KindRef:
		return 1
	case KindOptional:
		if t.Elem.isLarge() {
			return 1
		}
		return t.Elem.MaxRefs()
	case KindTuple:
		var n int
		for _, c := range t.Components {
			n += c.Type.MaxRefs()
		}
		return n
	}
	return 0
}

// isLarge reports whether the value can not be stored inline next to other data.
func (t ParamType) isLarge() bool {
	return t.MaxBits() >= cell.MaxBits || t.MaxRefs() >= cell.MaxRefs
}

// mapKeyBits is the dictionary key width for supported key types.
func (t ParamType) mapKeyBits() (uint, error) {
	switch t.Kind {
	case KindUint, KindInt:
		return uint(t.Size), nil
	case KindAddress:
		return 267, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedKey, t)
}

// valueInRef reports whether dictionary values of type t are stored in a separate cell.
func valueInRef(keyBits uint, t ParamType) bool {
	return dictLabelMaxBits+keyBits+t.MaxBits() > cell.MaxBits
}

// Equal reports structural equality of types, names of tuple components included.
func (t ParamType) Equal(other ParamType) bool {
	if t.Kind != other.Kind || t.Size != other.Size || len(t.Components) != len(other.Components) {
		return false
	}
	if (t.Elem == nil) != (other.Elem == nil) || (t.Key == nil) != (other.Key == nil) {
		return false
	}
	if t.Elem != nil && !t.Elem.Equal(*other.Elem) {
		return false
	}
	if t.Key != nil && !t.Key.Equal(*other.Key) {
		return false
	}
	for i, c := range t.Components {
		if c.Name != other.Components[i].Name || !c.Type.Equal(other.Components[i].Type) {
			return false
		}
	}
	return true
}
