package ton

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

type offlineTx struct {
	lt   uint64
	cell *cell.Cell
}

// Offline is an in-memory transport. It keeps sent messages and serves
// registered account states. When an executor is set, inbound external
// messages are executed on the destination account.
type Offline struct {
	executor Executor

	mx     sync.RWMutex
	sent   []*cell.Cell
	states map[string]*cell.Cell
	txs    map[string][]offlineTx
	lt     uint64
}

func NewOffline(executor Executor) *Offline {
	return &Offline{
		executor: executor,
		states:   map[string]*cell.Cell{},
		txs:      map[string][]offlineTx{},
	}
}

// SetAccountState registers the state returned for addr, nil removes it.
func (o *Offline) SetAccountState(addr *address.Address, state *cell.Cell) {
	o.mx.Lock()
	defer o.mx.Unlock()

	if state == nil {
		delete(o.states, addr.StringRaw())
		return
	}
	o.states[addr.StringRaw()] = state
}

// AddTransaction registers a transaction of addr with the next logical time and returns it.
func (o *Offline) AddTransaction(addr *address.Address, tx *cell.Cell) uint64 {
	o.mx.Lock()
	defer o.mx.Unlock()

	return o.addTransaction(addr.StringRaw(), tx)
}

func (o *Offline) addTransaction(key string, tx *cell.Cell) uint64 {
	o.lt++
	o.txs[key] = append(o.txs[key], offlineTx{lt: o.lt, cell: tx})
	return o.lt
}

// Sent returns all messages passed to SendMessage, in order.
func (o *Offline) Sent() []*cell.Cell {
	o.mx.RLock()
	defer o.mx.RUnlock()

	return slices.Clone(o.sent)
}

func (o *Offline) SendMessage(ctx context.Context, msg *cell.Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var m tlb.Message
	if err := m.LoadFromCell(msg.BeginParse()); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	ext := m.AsExternalIn()
	if ext == nil {
		return fmt.Errorf("%w: only inbound external messages can be sent, got %s", tlb.ErrUnknownMessageType, m.MsgType)
	}

	o.mx.Lock()
	defer o.mx.Unlock()

	o.sent = append(o.sent, msg)
	if o.executor == nil {
		return nil
	}

	key := ext.DstAddr.StringRaw()
	tx, state, err := o.executor.Execute(msg, o.states[key])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMessageNotAccepted, err)
	}
	if state != nil {
		o.states[key] = state
	}
	if tx != nil {
		o.addTransaction(key, tx)
	}
	return nil
}

func (o *Offline) GetAccountState(ctx context.Context, addr *address.Address) (*cell.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mx.RLock()
	defer o.mx.RUnlock()

	state, ok := o.states[addr.StringRaw()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.StringRaw())
	}
	return state, nil
}

func (o *Offline) GetTransactions(ctx context.Context, addr *address.Address, fromLT uint64, count uint8) ([]*cell.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mx.RLock()
	defer o.mx.RUnlock()

	list := o.txs[addr.StringRaw()]

	var res []*cell.Cell
	for i := len(list) - 1; i >= 0 && len(res) < int(count); i-- {
		if fromLT != 0 && list[i].lt > fromLT {
			continue
		}
		res = append(res, list[i].cell)
	}
	return res, nil
}
