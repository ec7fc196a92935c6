package ton

import (
	"fmt"

	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// Executor runs a message against an account state and returns the
// transaction and the new state. A nil account means the account does not exist yet.
type Executor interface {
	Execute(msg, account *cell.Cell) (tx, newAccount *cell.Cell, err error)
}

type ExecutorFunc func(msg, account *cell.Cell) (*cell.Cell, *cell.Cell, error)

func (f ExecutorFunc) Execute(msg, account *cell.Cell) (*cell.Cell, *cell.Cell, error) {
	return f(msg, account)
}

// ExecuteExternal serializes msg and runs it on the account state.
func ExecuteExternal(exec Executor, msg *tlb.ExternalMessage, account *cell.Cell) (tx, newAccount *cell.Cell, err error) {
	c, err := msg.ToCell()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize external message, err: %w", err)
	}

	tx, newAccount, err = exec.Execute(c, account)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute message %x: %w", c.Hash(), err)
	}
	return tx, newAccount, nil
}
