package abi

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broxus/nekoton-go/tvm/cell"
)

const walletABI = `{
	"ABI version": 2,
	"version": "2.2",
	"header": ["pubkey", "time", {"name": "expire", "type": "expire"}],
	"functions": [
		{"name": "constructor", "inputs": [], "outputs": []},
		{
			"name": "transfer",
			"inputs": [
				{"name": "dest", "type": "address"},
				{"name": "value", "type": "uint128"},
				{"name": "bounce", "type": "bool"}
			],
			"outputs": []
		},
		{
			"name": "getValues",
			"inputs": [{"name": "answerId", "type": "uint32"}],
			"outputs": [
				{"name": "values", "type": "map(uint32,tuple)", "components": [
					{"name": "a", "type": "uint8"},
					{"name": "b", "type": "string"}
				]}
			]
		},
		{"name": "legacy", "id": "0x1234", "inputs": [], "outputs": []}
	],
	"events": [
		{"name": "Transferred", "inputs": [{"name": "amount", "type": "uint128"}]}
	],
	"data": [
		{"key": 1, "name": "owner", "type": "address"},
		{"key": 2, "name": "nonce", "type": "uint32"}
	],
	"fields": [
		{"name": "_pubkey", "type": "uint256"},
		{"name": "_timestamp", "type": "uint64"},
		{"name": "_constructorFlag", "type": "bool"},
		{"name": "owner", "type": "address"}
	]
}`

func testContract(t *testing.T) *Contract {
	t.Helper()
	c, err := ParseContract([]byte(walletABI))
	require.NoError(t, err)
	return c
}

func TestParseContract(t *testing.T) {
	c := testContract(t)

	assert.Equal(t, Version2_2, c.Version)
	require.Len(t, c.Header, 3)
	assert.Equal(t, KindPublicKey, c.Header[0].Type.Kind)
	assert.Equal(t, KindExpire, c.Header[2].Type.Kind)

	var names []string
	for _, f := range c.SortedFunctions() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"constructor", "getValues", "legacy", "transfer"}, names)

	transfer := c.Functions["transfer"]
	assert.Equal(t, NewFunction("transfer", Version2_2, c.Header, transfer.Inputs, nil).InputID, transfer.InputID)
	assert.Equal(t, "map(uint32,(uint8,string))", c.Functions["getValues"].Outputs[0].Type.String())

	legacy := c.Functions["legacy"]
	assert.Equal(t, uint32(0x1234), legacy.InputID)
	assert.Equal(t, uint32(0x80001234), legacy.OutputID)

	require.Len(t, c.SortedEvents(), 1)
	assert.Equal(t, "Transferred(uint128)v2", c.Events["Transferred"].Signature())

	require.Len(t, c.Data, 2)
	assert.Equal(t, uint64(2), c.Data[1].Key)
	assert.Equal(t, "nonce", c.Data[1].Name)
	require.Len(t, c.Fields, 4)
}

func TestParseContract_Versions(t *testing.T) {
	c, err := ParseContract([]byte(`{"ABI version": 1, "functions": []}`))
	require.NoError(t, err)
	assert.Equal(t, Version1_0, c.Version)

	c, err = ParseContract([]byte(`{"version": "2.4"}`))
	require.NoError(t, err)
	assert.Equal(t, Version2_4, c.Version)

	c, err = ParseContract([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, c.Version)

	_, err = ParseContract([]byte(`{"version": "3.0"}`))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestParseContract_Invalid(t *testing.T) {
	tests := map[string]string{
		"duplicate function": `{"functions": [{"name": "a"}, {"name": "a"}]}`,
		"duplicate id":       `{"functions": [{"name": "a", "id": 1}, {"name": "b", "id": "0x00000001"}]}`,
		"duplicate event":    `{"events": [{"name": "e", "id": 7}, {"name": "f", "id": 7}]}`,
		"duplicate data key": `{"data": [{"key": 1, "name": "a", "type": "bool"}, {"key": 1, "name": "b", "type": "bool"}]}`,
		"bad header":         `{"header": ["uint8"]}`,
		"unknown type":       `{"functions": [{"name": "a", "inputs": [{"name": "x", "type": "float"}]}]}`,
		"bad map key":        `{"functions": [{"name": "a", "inputs": [{"name": "x", "type": "map(bool,uint8)"}]}]}`,
		"bad id":             `{"functions": [{"name": "a", "id": "zz"}]}`,
		"not json":           `{`,
	}

	for name, abi := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContract([]byte(abi))
			require.Error(t, err)
			assert.Equal(t, SchemaError, Classify(err))
			assert.False(t, Classify(err).Recoverable())
		})
	}

	_, err := ParseContract([]byte(tests["duplicate id"]))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestContract_Guess(t *testing.T) {
	c := testContract(t)
	transfer := c.Functions["transfer"]

	body, err := transfer.EncodeInternalInput([]Token{
		{Name: "dest", Value: NewAddress(testAddr)},
		{Name: "value", Value: NewUint(128, 1)},
		{Name: "bounce", Value: BoolValue(false)},
	})
	require.NoError(t, err)

	f, err := c.GuessFunctionByInput(body, true)
	require.NoError(t, err)
	assert.Same(t, transfer, f)

	getter := c.Functions["getValues"]
	tuple := getter.Outputs[0].Type.Elem
	answer, err := getter.EncodeOutput([]Token{{Name: "values", Value: MapValue{
		Key:   Uint(32),
		Value: *tuple,
		Entries: []MapEntry{{Key: NewUint(32, 1), Value: TupleValue{
			{Name: "a", Value: NewUint(8, 9)},
			{Name: "b", Value: StringValue("nine")},
		}}},
	}}})
	require.NoError(t, err)

	f, err = c.GuessFunctionByOutput(answer)
	require.NoError(t, err)
	assert.Same(t, getter, f)

	out, err := f.DecodeOutput(answer, false)
	require.NoError(t, err)
	entry := out[0].Value.(MapValue).Entries[0]
	assert.Equal(t, StringValue("nine"), entry.Value.(TupleValue)[1].Value)

	event := c.Events["Transferred"]
	eventBody, err := event.EncodeMessageBody([]Token{{Name: "amount", Value: NewUint(128, 5)}})
	require.NoError(t, err)

	e, err := c.GuessEvent(eventBody)
	require.NoError(t, err)
	assert.Same(t, event, e)

	unknown := cell.BeginCell().MustStoreUInt(0xFFFFFFFF, 32).EndCell()
	f, err = c.GuessFunctionByInput(unknown, true)
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = c.GuessFunctionByInput(cell.BeginCell().EndCell(), true)
	assert.Error(t, err)
}

func TestContract_InitData(t *testing.T) {
	c := testContract(t)
	pubkey := bytes.Repeat([]byte{0x42}, 32)

	data, err := c.EncodeInitData(pubkey, []Token{
		{Name: "owner", Value: NewAddress(testAddr)},
		{Name: "nonce", Value: NewUint(32, 17)},
	}, nil)
	require.NoError(t, err)

	key, tokens, err := c.DecodeInitData(data)
	require.NoError(t, err)
	assert.Equal(t, pubkey, []byte(key))
	require.Len(t, tokens, 2)
	assert.Equal(t, testAddr.StringRaw(), tokens[0].Value.(AddressValue).Address.StringRaw())
	assert.Equal(t, uint64(17), tokens[1].Value.(UintValue).Number.Uint64())

	// update only the nonce and the key
	newKey := bytes.Repeat([]byte{0x43}, 32)
	updated, err := c.EncodeInitData(newKey, []Token{{Name: "nonce", Value: NewUint(32, 18)}}, data)
	require.NoError(t, err)

	key, tokens, err = c.DecodeInitData(updated)
	require.NoError(t, err)
	assert.Equal(t, newKey, []byte(key))
	assert.Equal(t, testAddr.StringRaw(), tokens[0].Value.(AddressValue).Address.StringRaw())
	assert.Equal(t, uint64(18), tokens[1].Value.(UintValue).Number.Uint64())

	_, err = c.EncodeInitData(nil, []Token{{Name: "missing", Value: BoolValue(true)}}, nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = c.EncodeInitData(make([]byte, 5), nil, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	partial, err := c.EncodeInitData(nil, []Token{{Name: "owner", Value: NewAddress(testAddr)}}, nil)
	require.NoError(t, err)
	_, _, err = c.DecodeInitData(partial)
	assert.ErrorIs(t, err, ErrIncompleteDecode)
}

func TestContract_Fields(t *testing.T) {
	c := testContract(t)
	fields := []Token{
		{Name: "_pubkey", Value: UintValue{Size: 256, Number: new(big.Int).SetBytes(bytes.Repeat([]byte{1}, 32))}},
		{Name: "_timestamp", Value: NewUint(64, 1700000000000)},
		{Name: "_constructorFlag", Value: BoolValue(true)},
		{Name: "owner", Value: NewAddress(testAddr)},
	}

	data, err := c.EncodeFields(fields)
	require.NoError(t, err)

	got, err := c.DecodeFields(data, false)
	require.NoError(t, err)
	requireSameTokens(t, fields, got)

	extended, err := PackValues(append(append([]Param{}, c.Fields...), Param{Name: "extra", Type: Uint(32)}),
		append(append([]Token{}, fields...), Token{Name: "extra", Value: NewUint(32, 1)}), c.Version)
	require.NoError(t, err)

	_, err = c.DecodeFields(extended, false)
	assert.ErrorIs(t, err, ErrIncompleteDecode)

	got, err = c.DecodeFields(extended, true)
	require.NoError(t, err)
	requireSameTokens(t, fields, got)
}
