package abi

import (
	"fmt"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/crypto"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// SignedExternalMessage is an inbound external message ready to be sent.
type SignedExternalMessage struct {
	Cell     *cell.Cell
	Hash     []byte
	ExpireAt uint32
	Message  *tlb.ExternalMessage
}

// UnsignedExternalMessage wraps an unsigned call body together with its destination.
type UnsignedExternalMessage struct {
	*UnsignedBody

	Dst       *address.Address
	StateInit *tlb.StateInit
}

// EncodeExternalMessage builds an external call to dst. The state init is attached when set.
func (f *Function) EncodeExternalMessage(dst *address.Address, inputs []Token, opts ExternalCallOptions, stateInit *tlb.StateInit) (*UnsignedExternalMessage, error) {
	if dst == nil {
		return nil, fmt.Errorf("%w: destination address is required", ErrTypeMismatch)
	}
	if opts.Address == nil {
		opts.Address = dst
	}

	body, err := f.EncodeExternalInput(inputs, opts)
	if err != nil {
		return nil, err
	}

	return &UnsignedExternalMessage{
		UnsignedBody: body,
		Dst:          dst,
		StateInit:    stateInit,
	}, nil
}

func (m *UnsignedExternalMessage) Sign(signer crypto.Signer, signatureID *int32) (*SignedExternalMessage, error) {
	body, err := m.UnsignedBody.Sign(signer, signatureID)
	if err != nil {
		return nil, err
	}
	return m.wrap(body)
}

func (m *UnsignedExternalMessage) WithSignature(sig []byte) (*SignedExternalMessage, error) {
	body, err := m.UnsignedBody.WithSignature(sig)
	if err != nil {
		return nil, err
	}
	return m.wrap(body)
}

func (m *UnsignedExternalMessage) WithFakeSignature() (*SignedExternalMessage, error) {
	body, err := m.UnsignedBody.WithFakeSignature()
	if err != nil {
		return nil, err
	}
	return m.wrap(body)
}

func (m *UnsignedExternalMessage) WithoutSignature() (*SignedExternalMessage, error) {
	body, err := m.UnsignedBody.WithoutSignature()
	if err != nil {
		return nil, err
	}
	return m.wrap(body)
}

func (m *UnsignedExternalMessage) wrap(body *cell.Cell) (*SignedExternalMessage, error) {
	msg := &tlb.ExternalMessage{
		SrcAddr:   address.NewAddressNone(),
		DstAddr:   m.Dst,
		StateInit: m.StateInit,
		Body:      body,
	}

	c, err := msg.ToCell()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize external message: %w", err)
	}

	return &SignedExternalMessage{
		Cell:     c,
		Hash:     c.Hash(),
		ExpireAt: m.ExpireAt,
		Message:  msg,
	}, nil
}
