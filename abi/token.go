package abi

import (
	"crypto/ed25519"
	"math/big"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// Token is a value bound to a parameter name.
type Token struct {
	Name  string
	Value TokenValue
}

// TokenValue is one of the concrete value types declared in this file.
type TokenValue interface {
	tokenValue()
}

type UintValue struct {
	Size   int
	Number *big.Int
}

type IntValue struct {
	Size   int
	Number *big.Int
}

type VarUintValue struct {
	Size   int
	Number *big.Int
}

type VarIntValue struct {
	Size   int
	Number *big.Int
}

type BoolValue bool

// TupleValue holds component values in declaration order.
type TupleValue []Token

type ArrayValue struct {
	Elem  ParamType
	Items []TokenValue
}

type FixedArrayValue struct {
	Elem  ParamType
	Items []TokenValue
}

type CellValue struct {
	Cell *cell.Cell
}

// MapEntry key is an UintValue, IntValue or AddressValue.
type MapEntry struct {
	Key   TokenValue
	Value TokenValue
}

type MapValue struct {
	Key     ParamType
	Value   ParamType
	Entries []MapEntry
}

type AddressValue struct {
	Address *address.Address
}

type BytesValue []byte

type FixedBytesValue []byte

type StringValue string

type TokensValue struct {
	Amount tlb.Coins
}

// TimeValue is a unix time in milliseconds.
type TimeValue uint64

// ExpireValue is a unix time in seconds.
type ExpireValue uint32

// PublicKeyValue with nil Key is encoded as an absent key.
type PublicKeyValue struct {
	Key ed25519.PublicKey
}

// OptionalValue with nil Value is encoded as absent.
type OptionalValue struct {
	Type  ParamType
	Value TokenValue
}

type RefValue struct {
	Value TokenValue
}

func (UintValue) tokenValue()       {}
func (IntValue) tokenValue()        {}
func (VarUintValue) tokenValue()    {}
func (VarIntValue) tokenValue()     {}
func (BoolValue) tokenValue()       {}
func (TupleValue) tokenValue()      {}
func (ArrayValue) tokenValue()      {}
func (FixedArrayValue) tokenValue() {}
func (CellValue) tokenValue()       {}
func (MapValue) tokenValue()        {}
func (AddressValue) tokenValue()    {}
func (BytesValue) tokenValue()      {}
func (FixedBytesValue) tokenValue() {}
func (StringValue) tokenValue()     {}
func (TokensValue) tokenValue()     {}
func (TimeValue) tokenValue()       {}
func (ExpireValue) tokenValue()     {}
func (PublicKeyValue) tokenValue()  {}
func (OptionalValue) tokenValue()   {}
func (RefValue) tokenValue()        {}

func NewUint(size int, v uint64) UintValue {
	return UintValue{Size: size, Number: new(big.Int).SetUint64(v)}
}

func NewInt(size int, v int64) IntValue {
	return IntValue{Size: size, Number: big.NewInt(v)}
}

func NewAddress(addr *address.Address) AddressValue {
	return AddressValue{Address: addr}
}

func NewTokens(amount tlb.Coins) TokensValue {
	return TokensValue{Amount: amount}
}

// Find returns the value of a token with given name.
func Find(tokens []Token, name string) (TokenValue, bool) {
	for _, t := range tokens {
		if t.Name == name {
			return t.Value, true
		}
	}
	return nil, false
}
