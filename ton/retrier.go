package ton

import (
	"context"
	"errors"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tvm/cell"
)

type retryTransport struct {
	maxRetries int
	original   Transport
}

// WithRetry repeats calls failed with a timeout or a transient error.
// Without maxRetries calls are repeated until the context is done.
func WithRetry(t Transport, maxRetries ...int) Transport {
	tries := 0
	if len(maxRetries) > 0 {
		tries = maxRetries[0]
	}
	return &retryTransport{original: t, maxRetries: tries}
}

func (w *retryTransport) do(ctx context.Context, name string, call func() error) error {
	tries := 0
	for {
		err := call()
		if err == nil || !retryable(err) {
			return err
		}

		tries++
		if w.maxRetries > 0 && tries > w.maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		Logger("retrying", name, "after error:", err, "attempt", tries)
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

func (w *retryTransport) SendMessage(ctx context.Context, msg *cell.Cell) error {
	return w.do(ctx, "send message", func() error {
		return w.original.SendMessage(ctx, msg)
	})
}

func (w *retryTransport) GetAccountState(ctx context.Context, addr *address.Address) (state *cell.Cell, err error) {
	err = w.do(ctx, "get account state", func() error {
		state, err = w.original.GetAccountState(ctx, addr)
		return err
	})
	return state, err
}

func (w *retryTransport) GetTransactions(ctx context.Context, addr *address.Address, fromLT uint64, count uint8) (txs []*cell.Cell, err error) {
	err = w.do(ctx, "get transactions", func() error {
		txs, err = w.original.GetTransactions(ctx, addr, fromLT, count)
		return err
	})
	return txs, err
}
