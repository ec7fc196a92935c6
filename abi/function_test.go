package abi

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broxus/nekoton-go/clock"
	"github.com/broxus/nekoton-go/crypto"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

var defaultHeader = []Param{
	{Name: "pubkey", Type: PublicKey()},
	{Name: "time", Type: Time()},
	{Name: "expire", Type: Expire()},
}

func submitFunction(v Version) *Function {
	return NewFunction("submit", v, defaultHeader,
		[]Param{{Name: "value", Type: Uint(32)}},
		[]Param{{Name: "ok", Type: Bool()}},
	)
}

func testKeys(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.KeyPairFromSecret(bytes.Repeat([]byte{3}, 32))
	require.NoError(t, err)
	return kp
}

func TestFunction_Signature(t *testing.T) {
	f := NewFunction("transfer", Version2_2, defaultHeader,
		[]Param{{Name: "dest", Type: Address()}, {Name: "value", Type: Uint(128)}, {Name: "bounce", Type: Bool()}},
		nil,
	)
	assert.Equal(t, "transfer(address,uint128,bool)()v2", f.Signature())

	h := sha256.Sum256([]byte(f.Signature()))
	id := binary.BigEndian.Uint32(h[:4])
	assert.Equal(t, id&0x7FFFFFFF, f.InputID)
	assert.Equal(t, id|0x80000000, f.OutputID)

	v1 := NewFunction("transfer", Version1_0, defaultHeader, f.Inputs, nil)
	assert.Equal(t, "transfer(pubkey,time,expire,address,uint128,bool)()v1", v1.Signature())
	assert.NotEqual(t, f.InputID, v1.InputID)

	tuple := Tuple(Param{Name: "a", Type: Uint(8)}, Param{Name: "b", Type: String()})
	getter := NewFunction("getValues", Version2_2, nil,
		[]Param{{Name: "answerId", Type: Uint(32)}},
		[]Param{{Name: "values", Type: Map(Uint(32), tuple)}},
	)
	assert.Equal(t, "getValues(uint32)(map(uint32,(uint8,string)))v2", getter.Signature())
}

func TestFunction_Internal(t *testing.T) {
	f := submitFunction(DefaultVersion)

	body, err := f.EncodeInternalInput([]Token{{Name: "value", Value: NewUint(32, 42)}})
	require.NoError(t, err)
	assert.Equal(t, uint(64), body.BitsSize())
	assert.Equal(t, uint64(f.InputID), body.BeginParse().MustLoadUInt(32))

	got, err := f.DecodeInput(body, true, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got[0].Value.(UintValue).Number.Uint64())

	_, err = f.DecodeOutput(body, false)
	assert.ErrorIs(t, err, ErrWrongID)

	answer, err := f.EncodeOutput([]Token{{Name: "ok", Value: BoolValue(true)}})
	require.NoError(t, err)

	out, err := f.DecodeOutput(answer, false)
	require.NoError(t, err)
	assert.Equal(t, BoolValue(true), out[0].Value)
}

func TestFunction_External(t *testing.T) {
	kp := testKeys(t)
	sigID := int32(-239)

	for _, v := range []Version{Version1_0, Version2_2, Version2_3} {
		t.Run(v.String(), func(t *testing.T) {
			f := submitFunction(v)
			inputs := []Token{{Name: "value", Value: NewUint(32, 300)}}

			unsigned, err := f.EncodeExternalInput(inputs, ExternalCallOptions{
				PublicKey: kp.PublicKey(),
				Address:   testAddr,
				Timeout:   30 * time.Second,
				Clock:     clock.Fixed(1700000000123),
			})
			require.NoError(t, err)
			assert.Equal(t, uint32(1700000030), unsigned.ExpireAt)
			assert.Equal(t, kp.PublicKey(), unsigned.PublicKey)

			body, err := unsigned.Sign(kp, &sigID)
			require.NoError(t, err)

			sig, err := ReadSignature(body, v)
			require.NoError(t, err)
			require.Len(t, sig, 64)
			assert.True(t, kp.Public.CheckSignature(unsigned.Hash, sig, &sigID))
			assert.False(t, kp.Public.CheckSignature(unsigned.Hash, sig, nil))

			// hash covers everything but the signature
			unsignedBody, err := unsigned.WithoutSignature()
			require.NoError(t, err)
			s := unsignedBody.BeginParse()
			if v.Major == 1 {
				require.NoError(t, s.AdvanceRefs(1))
			} else {
				require.NoError(t, s.Advance(1))
			}
			signed := cell.BeginCell()
			if v.AtLeast(Version2_3) {
				signed.MustStoreAddr(testAddr)
			}
			signed.MustStoreBuilder(s.ToBuilder())
			assert.Equal(t, signed.EndCell().Hash(), unsigned.Hash)

			for _, b := range []*cell.Cell{body, unsignedBody} {
				got, err := f.DecodeInput(b, false, false)
				require.NoError(t, err)
				assert.Equal(t, uint64(300), got[0].Value.(UintValue).Number.Uint64())

				c := &Contract{Version: v, Header: defaultHeader, Functions: map[string]*Function{f.Name: f}}
				guessed, err := c.GuessFunctionByInput(b, false)
				require.NoError(t, err)
				assert.Same(t, f, guessed)
			}

			header, err := UnpackValues(defaultHeader, headerOf(t, body, v), v, true)
			require.NoError(t, err)
			assert.Equal(t, []byte(kp.Public), []byte(header[0].Value.(PublicKeyValue).Key))
			assert.Equal(t, TimeValue(1700000000123), header[1].Value)
			assert.Equal(t, ExpireValue(1700000030), header[2].Value)
		})
	}
}

// headerOf returns the body without its signature part.
func headerOf(t *testing.T, body *cell.Cell, v Version) *cell.Cell {
	t.Helper()

	s := body.BeginParse()
	if v.Major == 1 {
		require.NoError(t, s.AdvanceRefs(1))
	} else {
		require.NoError(t, s.Advance(513))
	}
	return s.MustToCell()
}

func TestFunction_ExternalSlot(t *testing.T) {
	kp := testKeys(t)
	f := submitFunction(Version2_2)
	inputs := []Token{{Name: "value", Value: NewUint(32, 1)}}

	unsigned, err := f.CreateUnsignedCall(HeaderValues{}, inputs, false, nil, clock.Fixed(1650000000777))
	require.NoError(t, err)
	assert.Equal(t, ^uint32(0), unsigned.ExpireAt)
	assert.Nil(t, unsigned.PublicKey)

	body, err := unsigned.WithoutSignature()
	require.NoError(t, err)
	assert.False(t, body.BeginParse().MustLoadBoolBit())

	fake, err := unsigned.WithFakeSignature()
	require.NoError(t, err)
	sig, err := ReadSignature(fake, Version2_2)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 64), sig)

	sig, err = ReadSignature(body, Version2_2)
	require.NoError(t, err)
	assert.Nil(t, sig)

	withSig, err := unsigned.WithSignature(kp.SignData(unsigned.Hash, nil))
	require.NoError(t, err)
	sig, err = ReadSignature(withSig, Version2_2)
	require.NoError(t, err)
	assert.True(t, kp.Public.CheckSignature(unsigned.Hash, sig, nil))

	_, err = unsigned.WithSignature(make([]byte, 10))
	assert.ErrorIs(t, err, crypto.ErrInvalidSignature)
	assert.Equal(t, CryptoError, Classify(err))

	_, err = f.CreateUnsignedCall(HeaderValues{"expire": BoolValue(true)}, inputs, true, nil, nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFunction_UnsignedCallDefaults(t *testing.T) {
	f := submitFunction(Version2_2)
	inputs := []Token{{Name: "value", Value: NewUint(32, 1)}}

	unsigned, err := f.CreateUnsignedCall(HeaderValues{}, inputs, true, nil, clock.Fixed(1650000000777))
	require.NoError(t, err)
	body, err := unsigned.WithoutSignature()
	require.NoError(t, err)

	s := body.BeginParse()
	require.NoError(t, s.Advance(1))
	header, err := UnpackValues(defaultHeader, s.MustToCell(), Version2_2, true)
	require.NoError(t, err)
	assert.Equal(t, PublicKeyValue{}, header[0].Value)
	assert.Equal(t, TimeValue(1650000000777), header[1].Value)
	assert.Equal(t, ExpireValue(^uint32(0)), header[2].Value)

	again, err := f.CreateUnsignedCall(HeaderValues{}, inputs, true, nil, clock.Fixed(1650000000777))
	require.NoError(t, err)
	assert.Equal(t, unsigned.Hash, again.Hash)
}

func TestFunction_UnsignedCallNeedsAddress(t *testing.T) {
	inputs := []Token{{Name: "value", Value: NewUint(32, 1)}}

	_, err := submitFunction(Version2_3).CreateUnsignedCall(HeaderValues{}, inputs, true, nil, clock.Fixed(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = submitFunction(Version2_3).EncodeExternalInput(inputs, ExternalCallOptions{Clock: clock.Fixed(1)})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	unsigned, err := submitFunction(Version2_3).CreateUnsignedCall(HeaderValues{}, inputs, true, testAddr, clock.Fixed(1))
	require.NoError(t, err)
	assert.Len(t, unsigned.Hash, 32)

	_, err = submitFunction(Version2_2).CreateUnsignedCall(HeaderValues{}, inputs, true, nil, clock.Fixed(1))
	assert.NoError(t, err)
}

func TestFunction_ExternalMessage(t *testing.T) {
	kp := testKeys(t)
	f := submitFunction(Version2_3)
	stateInit := &tlb.StateInit{
		Code: cell.BeginCell().MustStoreUInt(1, 8).EndCell(),
		Data: cell.BeginCell().MustStoreUInt(2, 8).EndCell(),
	}

	msg, err := f.EncodeExternalMessage(testAddr, []Token{{Name: "value", Value: NewUint(32, 5)}}, ExternalCallOptions{
		PublicKey: kp.PublicKey(),
		Clock:     clock.Fixed(1700000000000),
	}, stateInit)
	require.NoError(t, err)
	assert.Equal(t, uint32(1700000060), msg.ExpireAt)

	signed, err := msg.Sign(kp, nil)
	require.NoError(t, err)
	assert.Equal(t, signed.Cell.Hash(), signed.Hash)
	assert.Equal(t, msg.ExpireAt, signed.ExpireAt)

	var parsed tlb.Message
	require.NoError(t, parsed.LoadFromCell(signed.Cell.BeginParse()))
	ext := parsed.AsExternalIn()
	require.NotNil(t, ext)
	assert.Equal(t, testAddr.StringRaw(), ext.DstAddr.StringRaw())
	require.NotNil(t, ext.StateInit)
	assert.True(t, ext.StateInit.Code.Equal(stateInit.Code))

	sig, err := ReadSignature(ext.Body, Version2_3)
	require.NoError(t, err)
	assert.True(t, kp.Public.CheckSignature(msg.Hash, sig, nil))

	got, err := f.DecodeInput(ext.Body, false, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got[0].Value.(UintValue).Number.Uint64())

	fake, err := msg.WithFakeSignature()
	require.NoError(t, err)
	assert.NotEqual(t, signed.Hash, fake.Hash)

	_, err = f.EncodeExternalMessage(nil, nil, ExternalCallOptions{}, nil)
	assert.Error(t, err)
}

func TestEvent(t *testing.T) {
	e := NewEvent("Transferred", Version2_2, []Param{{Name: "amount", Type: Uint(128)}, {Name: "to", Type: Address()}})
	assert.Equal(t, "Transferred(uint128,address)v2", e.Signature())
	assert.Zero(t, e.ID&0x80000000)

	body, err := e.EncodeMessageBody([]Token{
		{Name: "amount", Value: NewUint(128, 1000)},
		{Name: "to", Value: NewAddress(testAddr)},
	})
	require.NoError(t, err)

	got, err := e.DecodeMessageBody(body, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got[0].Value.(UintValue).Number.Uint64())
	assert.Equal(t, testAddr.StringRaw(), got[1].Value.(AddressValue).Address.StringRaw())

	other := NewEvent("Other", Version2_2, nil)
	_, err = other.DecodeMessageBody(body, false)
	assert.ErrorIs(t, err, ErrWrongID)
}
