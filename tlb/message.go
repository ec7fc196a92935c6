package tlb

import (
	"errors"
	"fmt"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tvm/cell"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type MsgType string

const (
	MsgTypeInternal    MsgType = "INTERNAL"
	MsgTypeExternalIn  MsgType = "EXTERNAL_IN"
	MsgTypeExternalOut MsgType = "EXTERNAL_OUT"
)

type AnyMessage interface {
	Payload() *cell.Cell
	SenderAddr() *address.Address
	DestAddr() *address.Address
	ToCell() (*cell.Cell, error)
}

// Message is any message found in a transaction.
type Message struct {
	MsgType MsgType
	Msg     AnyMessage
}

type InternalMessage struct {
	IHRDisabled     bool
	Bounce          bool
	Bounced         bool
	SrcAddr         *address.Address
	DstAddr         *address.Address
	Amount          Coins
	ExtraCurrencies *cell.Dictionary
	IHRFee          Coins
	FwdFee          Coins
	CreatedLT       uint64
	CreatedAt       uint32

	StateInit *StateInit
	Body      *cell.Cell
}

type ExternalMessage struct {
	SrcAddr   *address.Address
	DstAddr   *address.Address
	ImportFee Coins

	StateInit *StateInit
	Body      *cell.Cell
}

type ExternalMessageOut struct {
	SrcAddr   *address.Address
	DstAddr   *address.Address
	CreatedLT uint64
	CreatedAt uint32

	StateInit *StateInit
	Body      *cell.Cell
}

func (m *InternalMessage) Payload() *cell.Cell          { return m.Body }
func (m *InternalMessage) SenderAddr() *address.Address { return m.SrcAddr }
func (m *InternalMessage) DestAddr() *address.Address   { return m.DstAddr }

func (m *ExternalMessage) Payload() *cell.Cell          { return m.Body }
func (m *ExternalMessage) SenderAddr() *address.Address { return m.SrcAddr }
func (m *ExternalMessage) DestAddr() *address.Address   { return m.DstAddr }

func (m *ExternalMessageOut) Payload() *cell.Cell          { return m.Body }
func (m *ExternalMessageOut) SenderAddr() *address.Address { return m.SrcAddr }
func (m *ExternalMessageOut) DestAddr() *address.Address   { return m.DstAddr }

func (m *Message) LoadFromCell(loader *cell.Slice) error {
	dup := loader.Copy()

	tag, err := dup.LoadUInt(1)
	if err != nil {
		return fmt.Errorf("failed to load message type: %w", err)
	}
	if tag == 1 {
		if tag, err = dup.LoadUInt(1); err != nil {
			return fmt.Errorf("failed to load message type: %w", err)
		}
		tag |= 0b10
	}

	switch tag {
	case 0b0:
		var msg InternalMessage
		if err = msg.LoadFromCell(loader); err != nil {
			return fmt.Errorf("failed to parse internal message: %w", err)
		}
		m.Msg, m.MsgType = &msg, MsgTypeInternal
	case 0b10:
		var msg ExternalMessage
		if err = msg.LoadFromCell(loader); err != nil {
			return fmt.Errorf("failed to parse external in message: %w", err)
		}
		m.Msg, m.MsgType = &msg, MsgTypeExternalIn
	case 0b11:
		var msg ExternalMessageOut
		if err = msg.LoadFromCell(loader); err != nil {
			return fmt.Errorf("failed to parse external out message: %w", err)
		}
		m.Msg, m.MsgType = &msg, MsgTypeExternalOut
	}
	return nil
}

func (m *Message) ToCell() (*cell.Cell, error) {
	if m.Msg == nil {
		return nil, ErrUnknownMessageType
	}
	return m.Msg.ToCell()
}

func (m *Message) AsInternal() *InternalMessage {
	msg, _ := m.Msg.(*InternalMessage)
	return msg
}

func (m *Message) AsExternalIn() *ExternalMessage {
	msg, _ := m.Msg.(*ExternalMessage)
	return msg
}

func (m *Message) AsExternalOut() *ExternalMessageOut {
	msg, _ := m.Msg.(*ExternalMessageOut)
	return msg
}

// appendInitStateAndBody stores state init and body inline when they fit, in refs otherwise.
func appendInitStateAndBody(b *cell.Builder, stateInit *StateInit, body *cell.Cell) error {
	if b.BitsLeft() < 3 {
		return fmt.Errorf("%w: no room for state init and body", cell.ErrOverflow)
	}

	b.MustStoreBoolBit(stateInit != nil)
	if stateInit != nil {
		stateCell, err := stateInit.ToCell()
		if err != nil {
			return fmt.Errorf("failed to serialize state init: %w", err)
		}

		// one more bit and maybe a ref are needed for the body
		if stateCell.BitsSize()+2 > b.BitsLeft() || stateCell.RefsNum()+1 > b.RefsLeft() {
			b.MustStoreBoolBit(true)
			err = b.StoreRef(stateCell)
		} else {
			b.MustStoreBoolBit(false)
			err = b.StoreBuilder(stateCell.ToBuilder())
		}
		if err != nil {
			return fmt.Errorf("failed to store message state init: %w", err)
		}
	}

	if body == nil {
		b.MustStoreBoolBit(false)
		return nil
	}

	var err error
	if body.BitsSize()+1 > b.BitsLeft() || body.RefsNum() > b.RefsLeft() {
		b.MustStoreBoolBit(true)
		err = b.StoreRef(body)
	} else {
		b.MustStoreBoolBit(false)
		err = b.StoreBuilder(body.ToBuilder())
	}
	if err != nil {
		return fmt.Errorf("failed to store message body: %w", err)
	}
	return nil
}

func loadInitStateAndBody(loader *cell.Slice) (*StateInit, *cell.Cell, error) {
	var stateInit *StateInit

	hasInit, err := loader.LoadBoolBit()
	if err != nil {
		return nil, nil, err
	}
	if hasInit {
		src, err := eitherRef(loader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load state init: %w", err)
		}

		stateInit = &StateInit{}
		if err = stateInit.LoadFromCell(src); err != nil {
			return nil, nil, fmt.Errorf("failed to parse state init: %w", err)
		}
	}

	src, err := eitherRef(loader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load body: %w", err)
	}
	body, err := src.ToCell()
	if err != nil {
		return nil, nil, err
	}
	return stateInit, body, nil
}

// eitherRef reads Either X ^X, inline data is consumed up to the end.
func eitherRef(loader *cell.Slice) (*cell.Slice, error) {
	isRef, err := loader.LoadBoolBit()
	if err != nil {
		return nil, err
	}
	if isRef {
		return loader.LoadRef()
	}
	return loader, nil
}

func (m *InternalMessage) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell()
	b.MustStoreUInt(0, 1)
	b.MustStoreBoolBit(m.IHRDisabled).MustStoreBoolBit(m.Bounce).MustStoreBoolBit(m.Bounced)
	if err := b.StoreAddr(m.SrcAddr); err != nil {
		return nil, err
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(m.Amount.Nano()); err != nil {
		return nil, err
	}
	if err := b.StoreDict(m.ExtraCurrencies); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(m.IHRFee.Nano()); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(m.FwdFee.Nano()); err != nil {
		return nil, err
	}
	b.MustStoreUInt(m.CreatedLT, 64).MustStoreUInt(uint64(m.CreatedAt), 32)

	if err := appendInitStateAndBody(b, m.StateInit, m.Body); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (m *InternalMessage) LoadFromCell(loader *cell.Slice) error {
	var res InternalMessage

	tag, err := loader.LoadUInt(1)
	if err != nil {
		return err
	}
	if tag != 0 {
		return fmt.Errorf("%w: not an internal message", ErrUnknownMessageType)
	}

	flags, err := loader.LoadUInt(3)
	if err != nil {
		return err
	}
	res.IHRDisabled, res.Bounce, res.Bounced = flags&0b100 != 0, flags&0b010 != 0, flags&0b001 != 0

	if res.SrcAddr, err = loader.LoadAddr(); err != nil {
		return err
	}
	if res.DstAddr, err = loader.LoadAddr(); err != nil {
		return err
	}
	if err = res.Amount.LoadFromCell(loader); err != nil {
		return err
	}
	if res.ExtraCurrencies, err = loader.LoadDict(32); err != nil {
		return err
	}
	if res.ExtraCurrencies.IsEmpty() {
		res.ExtraCurrencies = nil
	}
	if err = res.IHRFee.LoadFromCell(loader); err != nil {
		return err
	}
	if err = res.FwdFee.LoadFromCell(loader); err != nil {
		return err
	}
	if res.CreatedLT, err = loader.LoadUInt(64); err != nil {
		return err
	}
	createdAt, err := loader.LoadUInt(32)
	if err != nil {
		return err
	}
	res.CreatedAt = uint32(createdAt)

	if res.StateInit, res.Body, err = loadInitStateAndBody(loader); err != nil {
		return err
	}

	*m = res
	return nil
}

// Comment returns the text of a simple transfer comment.
func (m *InternalMessage) Comment() string {
	if m.Body == nil {
		return ""
	}

	l := m.Body.BeginParse()
	if op, err := l.LoadUInt(32); err != nil || op != 0 {
		return ""
	}
	str, _ := l.LoadStringSnake()
	return str
}

func (m *ExternalMessage) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().MustStoreUInt(0b10, 2)
	if err := b.StoreAddr(m.SrcAddr); err != nil {
		return nil, err
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(m.ImportFee.Nano()); err != nil {
		return nil, err
	}

	if err := appendInitStateAndBody(b, m.StateInit, m.Body); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (m *ExternalMessage) LoadFromCell(loader *cell.Slice) error {
	var res ExternalMessage

	tag, err := loader.LoadUInt(2)
	if err != nil {
		return err
	}
	if tag != 0b10 {
		return fmt.Errorf("%w: not an external in message", ErrUnknownMessageType)
	}

	if res.SrcAddr, err = loader.LoadAddr(); err != nil {
		return err
	}
	if res.DstAddr, err = loader.LoadAddr(); err != nil {
		return err
	}
	if err = res.ImportFee.LoadFromCell(loader); err != nil {
		return err
	}
	if res.StateInit, res.Body, err = loadInitStateAndBody(loader); err != nil {
		return err
	}

	*m = res
	return nil
}

// NormalizedHash is the hash of the message without source, fee and state init,
// with the body in a ref. It stays the same however the message was serialized.
func (m *ExternalMessage) NormalizedHash() ([]byte, error) {
	body := m.Body
	if body == nil {
		body = cell.BeginCell().EndCell()
	}

	b := cell.BeginCell().MustStoreUInt(0b10, 2).MustStoreUInt(0, 2)
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, err
	}
	b.MustStoreCoins(0).MustStoreBoolBit(false).MustStoreBoolBit(true).MustStoreRef(body)
	return b.EndCell().Hash(), nil
}

func (m *ExternalMessageOut) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().MustStoreUInt(0b11, 2)
	if err := b.StoreAddr(m.SrcAddr); err != nil {
		return nil, err
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, err
	}
	b.MustStoreUInt(m.CreatedLT, 64).MustStoreUInt(uint64(m.CreatedAt), 32)

	if err := appendInitStateAndBody(b, m.StateInit, m.Body); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (m *ExternalMessageOut) LoadFromCell(loader *cell.Slice) error {
	var res ExternalMessageOut

	tag, err := loader.LoadUInt(2)
	if err != nil {
		return err
	}
	if tag != 0b11 {
		return fmt.Errorf("%w: not an external out message", ErrUnknownMessageType)
	}

	if res.SrcAddr, err = loader.LoadAddr(); err != nil {
		return err
	}
	if res.DstAddr, err = loader.LoadAddr(); err != nil {
		return err
	}
	if res.CreatedLT, err = loader.LoadUInt(64); err != nil {
		return err
	}
	createdAt, err := loader.LoadUInt(32)
	if err != nil {
		return err
	}
	res.CreatedAt = uint32(createdAt)

	if res.StateInit, res.Body, err = loadInitStateAndBody(loader); err != nil {
		return err
	}

	*m = res
	return nil
}
