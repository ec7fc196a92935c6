package abi

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/clock"
	"github.com/broxus/nekoton-go/crypto"
	"github.com/broxus/nekoton-go/tvm/cell"
)

const (
	inputIDMask  = 0x7FFFFFFF
	outputIDFlag = 0x80000000

	DefaultExpireTimeout = 60 * time.Second
)

type Function struct {
	Name     string
	Version  Version
	Header   []Param
	Inputs   []Param
	Outputs  []Param
	InputID  uint32
	OutputID uint32
}

// NewFunction creates a function with ids computed from its signature.
func NewFunction(name string, version Version, header, inputs, outputs []Param) *Function {
	f := &Function{
		Name:    name,
		Version: version,
		Header:  header,
		Inputs:  inputs,
		Outputs: outputs,
	}

	id := selectorID(f.Signature())
	f.InputID = id & inputIDMask
	f.OutputID = id | outputIDFlag
	return f
}

// Signature is the text hashed to get function ids, like "transfer(address,uint128)()v2".
func (f *Function) Signature() string {
	inputs := f.Inputs
	if f.Version.layout().headerInSignature {
		inputs = append(append([]Param{}, f.Header...), f.Inputs...)
	}
	return fmt.Sprintf("%s(%s)(%s)v%d", f.Name, typeList(inputs), typeList(f.Outputs), f.Version.Major)
}

func typeList(params []Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Type.String()
	}
	return strings.Join(names, ",")
}

func selectorID(signature string) uint32 {
	h := sha256.Sum256([]byte(signature))
	return binary.BigEndian.Uint32(h[:4])
}

func idUnit(id uint32) unit {
	return newUnit(cell.BeginCell().MustStoreUInt(uint64(id), 32), Uint(32))
}

// EncodeInternalInput builds a body for an internal message call.
func (f *Function) EncodeInternalInput(inputs []Token) (*cell.Cell, error) {
	return f.encodeWithID(f.InputID, f.Inputs, inputs)
}

// EncodeOutput builds an answer body with given output values.
func (f *Function) EncodeOutput(outputs []Token) (*cell.Cell, error) {
	return f.encodeWithID(f.OutputID, f.Outputs, outputs)
}

func (f *Function) encodeWithID(id uint32, params []Param, tokens []Token) (*cell.Cell, error) {
	p := newPacker(f.Version)
	units, err := p.params(params, tokens)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", f.Name, err)
	}

	b, err := p.chain(append([]unit{idUnit(id)}, units...))
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", f.Name, err)
	}
	return b.EndCell(), nil
}

// HeaderValues holds values for the header of an external call, keyed by header param name.
// Missing time is filled from the clock, missing expire with max uint32.
type HeaderValues map[string]TokenValue

// ExternalCallOptions controls the header filled by EncodeExternalInput.
type ExternalCallOptions struct {
	PublicKey ed25519.PublicKey
	// Address is hashed together with the body since abi 2.3.
	Address *address.Address
	// Timeout is the expire offset, DefaultExpireTimeout when zero.
	Timeout time.Duration
	// Clock is clock.System when nil.
	Clock clock.Clock
}

// EncodeExternalInput builds an unsigned external call body with the header
// filled from options.
func (f *Function) EncodeExternalInput(inputs []Token, opts ExternalCallOptions) (*UnsignedBody, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultExpireTimeout
	}

	now := clk.NowMs()
	header := HeaderValues{}
	for _, h := range f.Header {
		switch h.Type.Kind {
		case KindTime:
			header[h.Name] = TimeValue(now)
		case KindExpire:
			header[h.Name] = ExpireValue(uint32(now/1000) + uint32(timeout/time.Second))
		case KindPublicKey:
			header[h.Name] = PublicKeyValue{Key: opts.PublicKey}
		}
	}

	return f.CreateUnsignedCall(header, inputs, true, opts.Address, clk)
}

// CreateUnsignedCall builds an external call body with a slot for the signature.
// When reserveSign is set the slot is big enough to be signed in place.
// Missing time header is taken from clk, clock.System when nil.
// Since abi 2.3 dst is required.
func (f *Function) CreateUnsignedCall(header HeaderValues, inputs []Token, reserveSign bool, dst *address.Address, clk clock.Clock) (*UnsignedBody, error) {
	l := f.Version.layout()
	if l.signWithAddress && dst == nil {
		return nil, fmt.Errorf("%w: destination address is required for abi %s", ErrTypeMismatch, f.Version)
	}
	if clk == nil {
		clk = clock.System{}
	}
	p := newPacker(f.Version)

	body := &UnsignedBody{
		layout:   l,
		ExpireAt: ^uint32(0),
	}

	var units []unit
	if l.signatureInRef {
		units = append(units, unit{
			b:       cell.BeginCell().MustStoreRef(cell.BeginCell().EndCell()),
			maxRefs: 1,
		})
	} else {
		slot := cell.BeginCell()
		if reserveSign {
			slot.MustStoreBoolBit(true).MustStoreSlice(make([]byte, 64), 512)
		} else {
			slot.MustStoreBoolBit(false)
		}

		maxBits := uint(1 + 512)
		if l.signWithAddress {
			maxBits = addressMaxBits
		}
		units = append(units, unit{b: slot, maxBits: maxBits})
	}

	for _, h := range f.Header {
		v, ok := header[h.Name]
		if !ok {
			v = defaultHeaderValue(h.Type, clk)
		}

		switch val := v.(type) {
		case ExpireValue:
			body.ExpireAt = uint32(val)
		case PublicKeyValue:
			body.PublicKey = val.Key
		}

		u, err := p.value(h.Type, v, 0)
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", h.Name, err)
		}
		units = append(units, u...)
	}

	in, err := p.params(f.Inputs, inputs)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", f.Name, err)
	}
	units = append(append(units, idUnit(f.InputID)), in...)

	root, err := p.chain(units)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", f.Name, err)
	}

	s := root.EndCell().BeginParse()
	if l.signatureInRef {
		err = s.AdvanceRefs(1)
	} else {
		err = s.Advance(units[0].b.BitsUsed())
	}
	if err != nil {
		return nil, err
	}
	body.payload = s.ToBuilder()

	signed := cell.BeginCell()
	if l.signWithAddress {
		if err = signed.StoreAddr(dst); err != nil {
			return nil, err
		}
	}
	if err = signed.StoreBuilder(body.payload); err != nil {
		return nil, fmt.Errorf("body with address does not fit into cell: %w", err)
	}
	body.Hash = signed.EndCell().Hash()

	return body, nil
}

func defaultHeaderValue(t ParamType, clk clock.Clock) TokenValue {
	switch t.Kind {
	case KindTime:
		return TimeValue(clk.NowMs())
	case KindExpire:
		return ExpireValue(^uint32(0))
	}
	return PublicKeyValue{}
}

// UnsignedBody is an external call body waiting for a signature.
// Finalizers do not modify it, so it can be signed several times.
type UnsignedBody struct {
	// Hash is the data to sign.
	Hash      []byte
	ExpireAt  uint32
	PublicKey ed25519.PublicKey

	payload *cell.Builder
	layout  layout
}

// Sign signs the hash, extended with the signature id when it is set.
func (u *UnsignedBody) Sign(signer crypto.Signer, signatureID *int32) (*cell.Cell, error) {
	sig, err := signer.SignRaw(crypto.ExtendSignatureWithID(u.Hash, signatureID))
	if err != nil {
		return nil, fmt.Errorf("failed to sign body: %w", err)
	}
	return u.withSignature(sig, signer.PublicKey())
}

// WithSignature puts an externally made signature into the body.
func (u *UnsignedBody) WithSignature(sig []byte) (*cell.Cell, error) {
	return u.withSignature(sig, u.PublicKey)
}

// WithFakeSignature fills the signature with zeroes, useful for fee estimation.
func (u *UnsignedBody) WithFakeSignature() (*cell.Cell, error) {
	return u.withSignature(make([]byte, ed25519.SignatureSize), u.PublicKey)
}

func (u *UnsignedBody) WithoutSignature() (*cell.Cell, error) {
	b := cell.BeginCell()
	if u.layout.signatureInRef {
		b.MustStoreRef(cell.BeginCell().EndCell())
	} else {
		b.MustStoreBoolBit(false)
	}
	if err := b.StoreBuilder(u.payload); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (u *UnsignedBody) withSignature(sig []byte, key ed25519.PublicKey) (*cell.Cell, error) {
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", crypto.ErrInvalidSignature, ed25519.SignatureSize, len(sig))
	}

	b := cell.BeginCell()
	if u.layout.signatureInRef {
		sc := cell.BeginCell().MustStoreSlice(sig, 512)
		if len(key) == ed25519.PublicKeySize {
			sc.MustStoreSlice(key, 256)
		}
		b.MustStoreRef(sc.EndCell())
	} else {
		b.MustStoreBoolBit(true).MustStoreSlice(sig, 512)
	}

	if err := b.StoreBuilder(u.payload); err != nil {
		return nil, fmt.Errorf("signed body does not fit into cell: %w", err)
	}
	return b.EndCell(), nil
}

// DecodeInput decodes call arguments. External bodies have the signature and
// header skipped first.
func (f *Function) DecodeInput(body *cell.Cell, internal, allowPartial bool) ([]Token, error) {
	d := newDecoder(f.Version, allowPartial)

	s := body.BeginParse()
	if !internal {
		var err error
		if s, err = d.skipSignature(s); err != nil {
			return nil, err
		}
		if _, s, err = d.params(f.Header, s, 0); err != nil {
			return nil, fmt.Errorf("function %q header: %w", f.Name, err)
		}
	}
	return f.decodeWithID(d, f.InputID, f.Inputs, s)
}

// DecodeOutput decodes an answer body.
func (f *Function) DecodeOutput(body *cell.Cell, allowPartial bool) ([]Token, error) {
	return f.decodeWithID(newDecoder(f.Version, allowPartial), f.OutputID, f.Outputs, body.BeginParse())
}

func (f *Function) decodeWithID(d decoder, id uint32, params []Param, s *cell.Slice) ([]Token, error) {
	got, s, err := d.readID(s)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, fmt.Errorf("%w: function %q expects 0x%08x, got 0x%08x", ErrWrongID, f.Name, id, got)
	}

	tokens, rest, err := d.params(params, s, 0)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", f.Name, err)
	}
	if err = d.finish(rest); err != nil {
		return nil, fmt.Errorf("function %q: %w", f.Name, err)
	}
	return tokens, nil
}

func (d decoder) readID(s *cell.Slice) (uint32, *cell.Slice, error) {
	s, err := d.forBits(s)
	if err != nil {
		return 0, nil, err
	}
	id, err := s.LoadUInt(32)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read id: %w", err)
	}
	return uint32(id), s, nil
}

func (d decoder) skipSignature(s *cell.Slice) (*cell.Slice, error) {
	if d.layout.signatureInRef {
		if err := s.AdvanceRefs(1); err != nil {
			return nil, fmt.Errorf("failed to skip signature: %w", err)
		}
		return s, nil
	}

	signed, err := s.LoadBoolBit()
	if err != nil {
		return nil, fmt.Errorf("failed to read signature flag: %w", err)
	}
	if signed {
		if err = s.Advance(512); err != nil {
			return nil, fmt.Errorf("failed to skip signature: %w", err)
		}
	}
	return s, nil
}

// ReadSignature returns the signature of an external call body, nil when it is not signed.
func ReadSignature(body *cell.Cell, version Version) ([]byte, error) {
	s := body.BeginParse()
	if version.layout().signatureInRef {
		ref, err := s.LoadRef()
		if err != nil {
			return nil, err
		}
		if ref.BitsLeft() < 512 {
			return nil, nil
		}
		return ref.LoadSlice(512)
	}

	signed, err := s.LoadBoolBit()
	if err != nil {
		return nil, err
	}
	if !signed {
		return nil, nil
	}
	return s.LoadSlice(512)
}
