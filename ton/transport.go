package ton

import (
	"context"
	"errors"
	"fmt"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// Logger receives debug output of transport wrappers, silent by default.
var Logger = func(v ...any) {}

var (
	ErrMessageNotAccepted = errors.New("message was not accepted by the contract")
	ErrAccountNotFound    = errors.New("account state not found")
	// ErrTransient marks failures which may succeed when repeated.
	ErrTransient = errors.New("transient transport failure")
)

// Transport is the network access used to deliver messages and read account data.
type Transport interface {
	SendMessage(ctx context.Context, msg *cell.Cell) error
	GetAccountState(ctx context.Context, addr *address.Address) (*cell.Cell, error)
	// GetTransactions returns up to count transactions of the account, starting
	// from fromLT and going back in time. Zero fromLT means the latest one.
	GetTransactions(ctx context.Context, addr *address.Address, fromLT uint64, count uint8) ([]*cell.Cell, error)
}

// SendExternalMessage serializes an inbound external message and sends it.
func SendExternalMessage(ctx context.Context, t Transport, msg *tlb.ExternalMessage) error {
	req, err := msg.ToCell()
	if err != nil {
		return fmt.Errorf("failed to serialize external message, err: %w", err)
	}
	return t.SendMessage(ctx, req)
}
