package abi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broxus/nekoton-go/crypto"
	"github.com/broxus/nekoton-go/tvm/cell"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
		kind Kind
	}{
		{"uint8", "uint8", KindUint},
		{"int256", "int256", KindInt},
		{"varuint16", "varuint16", KindVarUint},
		{"varint32", "varint32", KindVarInt},
		{"bool", "bool", KindBool},
		{"cell", "cell", KindCell},
		{"address", "address", KindAddress},
		{"bytes", "bytes", KindBytes},
		{"fixedbytes32", "fixedbytes32", KindFixedBytes},
		{"string", "string", KindString},
		{"gram", "gram", KindToken},
		{"token", "gram", KindToken},
		{"time", "time", KindTime},
		{"expire", "expire", KindExpire},
		{"pubkey", "pubkey", KindPublicKey},
		{"uint8[]", "uint8[]", KindArray},
		{"uint8[][3]", "uint8[][3]", KindFixedArray},
		{"map(address,uint128)", "map(address,uint128)", KindMap},
		{"map(int8,map(uint16,bool))", "map(int8,map(uint16,bool))", KindMap},
		{"optional(cell)", "optional(cell)", KindOptional},
		{"ref(uint8[])", "ref(uint8[])", KindRef},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, typ.Kind)
			assert.Equal(t, tt.want, typ.String())
			assert.NoError(t, typ.Validate())
		})
	}

	tuple, err := ParseType("tuple[]", Param{Name: "a", Type: Uint(8)}, Param{Name: "b", Type: Bool()})
	require.NoError(t, err)
	assert.Equal(t, "(uint8,bool)[]", tuple.String())
	assert.True(t, tuple.Equal(Array(Tuple(Param{Name: "a", Type: Uint(8)}, Param{Name: "b", Type: Bool()}))))
	assert.False(t, tuple.Equal(Array(Tuple(Param{Name: "c", Type: Uint(8)}, Param{Name: "b", Type: Bool()}))))
}

func TestParseType_Invalid(t *testing.T) {
	for _, in := range []string{"uint0", "uint257", "varuint1", "varint33", "float", "uint8[x]", "optional", "map(uint8)", "foo(bar)"} {
		_, err := ParseType(in)
		assert.ErrorIs(t, err, ErrInvalidSchema, in)
	}

	_, err := ParseType("map(cell,uint8)")
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = ParseType("uint8" + strings.Repeat("[]", MaxNestingDepth+2))
	assert.ErrorIs(t, err, ErrNestingTooDeep)

	deep := Uint(8)
	for i := 0; i < MaxNestingDepth+1; i++ {
		deep = Optional(deep)
	}
	assert.ErrorIs(t, deep.Validate(), ErrNestingTooDeep)
}

func TestParam_JSON(t *testing.T) {
	p := Param{Name: "items", Type: Map(Address(), Array(Tuple(Param{Name: "a", Type: Uint(8)})))}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"items","type":"map(address,tuple[])","components":[{"name":"a","type":"uint8"}]}`, string(data))

	var back Param
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Name, back.Name)
	assert.True(t, p.Type.Equal(back.Type))

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"name":"x","type":"uint999"}`), &back), ErrInvalidSchema)
}

func TestParamType_Sizes(t *testing.T) {
	tests := []struct {
		typ  ParamType
		bits uint
		refs int
	}{
		{Address(), 591, 0},
		{TokenAmount(), 124, 0},
		{PublicKey(), 257, 0},
		{Array(Uint(8)), 33, 1},
		{FixedArray(Uint(8), 5), 1, 1},
		{Map(Uint(8), Bool()), 1, 1},
		{VarUint(16), 124, 0},
		{VarInt(32), 253, 0},
		{Time(), 64, 0},
		{Expire(), 32, 0},
		{String(), 0, 1},
		{Optional(Uint(32)), 33, 0},
		{Optional(Cell()), 1, 1},
		{Tuple(Param{Name: "a", Type: Uint(8)}, Param{Name: "b", Type: Cell()}), 8, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.bits, tt.typ.MaxBits(), tt.typ.String())
		assert.Equal(t, tt.refs, tt.typ.MaxRefs(), tt.typ.String())
	}

	assert.False(t, valueInRef(267, Address()))
	assert.True(t, valueInRef(267, Tuple(Param{Name: "a", Type: Address()}, Param{Name: "b", Type: Uint(256)})))
	assert.False(t, valueInRef(32, Uint(256)))
}

func TestVersion(t *testing.T) {
	for in, want := range map[string]Version{
		"1":     Version1_0,
		"2":     Version2_0,
		"2.3":   Version2_3,
		"2.4.0": Version2_4,
	} {
		v, err := ParseVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v)
	}

	for _, in := range []string{"1.1", "2.5", "3", "x"} {
		_, err := ParseVersion(in)
		assert.ErrorIs(t, err, ErrInvalidSchema, in)
	}

	assert.True(t, Version2_3.AtLeast(Version2_2))
	assert.False(t, Version1_0.AtLeast(Version2_0))
	assert.Equal(t, "2.2", DefaultVersion.String())

	l := Version2_3.layout()
	assert.True(t, l.signWithAddress)
	assert.True(t, l.maxSizeBudget)
	assert.False(t, l.signatureInRef)
	assert.True(t, Version1_0.layout().reserveLastRef)
	assert.False(t, Version2_0.layout().reserveLastRef)

	data, err := json.Marshal(Version2_1)
	require.NoError(t, err)
	assert.Equal(t, `"2.1"`, string(data))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{fmt.Errorf("wrapped: %w", ErrDuplicateID), SchemaError},
		{ErrNestingTooDeep, SchemaError},
		{ErrLengthMismatch, TypeMismatchError},
		{ErrWrongID, TypeMismatchError},
		{cell.ErrTooBigValue, TypeMismatchError},
		{cell.ErrOverflow, CapacityError},
		{ErrIncompleteDecode, CapacityError},
		{cell.ErrInvalidBOC, FormatError},
		{fmt.Errorf("failed to load: %w", cell.ErrTooBigSize), FormatError},
		{cell.BeginCell().StoreSlice([]byte{1}, 16), FormatError},
		{func() error { _, err := cell.BeginCell().EndCell().BeginParse().LoadUInt(65); return err }(), FormatError},
		{crypto.ErrInvalidKey, CryptoError},
		{errors.New("other"), UnknownError},
		{nil, UnknownError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), fmt.Sprint(tt.err))
	}

	assert.False(t, SchemaError.Recoverable())
	assert.True(t, CapacityError.Recoverable())
	assert.Equal(t, "type mismatch", TypeMismatchError.String())
}
