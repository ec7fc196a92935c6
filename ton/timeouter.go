package ton

import (
	"context"
	"time"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tvm/cell"
)

type timeoutTransport struct {
	original Transport
	timeout  time.Duration
}

// WithTimeout limits each call of the transport with its own deadline.
func WithTimeout(t Transport, timeout time.Duration) Transport {
	return &timeoutTransport{original: t, timeout: timeout}
}

func (c *timeoutTransport) SendMessage(ctx context.Context, msg *cell.Cell) error {
	tCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.original.SendMessage(tCtx, msg)
}

func (c *timeoutTransport) GetAccountState(ctx context.Context, addr *address.Address) (*cell.Cell, error) {
	tCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.original.GetAccountState(tCtx, addr)
}

func (c *timeoutTransport) GetTransactions(ctx context.Context, addr *address.Address, fromLT uint64, count uint8) ([]*cell.Cell, error) {
	tCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.original.GetTransactions(tCtx, addr, fromLT, count)
}
