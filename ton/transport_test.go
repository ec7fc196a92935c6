package ton

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tlb"
	"github.com/broxus/nekoton-go/tvm/cell"
)

var testAddr = address.MustParseAddr("EQA_B407fiLIlE5VYZCaI2rki0in6kLyjdhhwitvZNfpe7eY")

type flakyTransport struct {
	failures int
	err      error
	calls    int
	deadline bool
}

func (f *flakyTransport) try(ctx context.Context) error {
	f.calls++
	_, f.deadline = ctx.Deadline()
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyTransport) SendMessage(ctx context.Context, msg *cell.Cell) error {
	return f.try(ctx)
}

func (f *flakyTransport) GetAccountState(ctx context.Context, addr *address.Address) (*cell.Cell, error) {
	if err := f.try(ctx); err != nil {
		return nil, err
	}
	return cell.BeginCell().MustStoreUInt(7, 8).EndCell(), nil
}

func (f *flakyTransport) GetTransactions(ctx context.Context, addr *address.Address, fromLT uint64, count uint8) ([]*cell.Cell, error) {
	if err := f.try(ctx); err != nil {
		return nil, err
	}
	return []*cell.Cell{cell.BeginCell().EndCell()}, nil
}

func externalMessage(body uint64) *tlb.ExternalMessage {
	return &tlb.ExternalMessage{
		SrcAddr: address.NewAddressNone(),
		DstAddr: testAddr,
		Body:    cell.BeginCell().MustStoreUInt(body, 64).EndCell(),
	}
}

func TestWithRetry(t *testing.T) {
	transient := fmt.Errorf("%w: connection reset", ErrTransient)

	f := &flakyTransport{failures: 2, err: transient}
	state, err := WithRetry(f).GetAccountState(context.Background(), testAddr)
	if err != nil {
		t.Fatal(err)
	}
	if f.calls != 3 {
		t.Fatal("calls", f.calls)
	}
	if state.BeginParse().MustLoadUInt(8) != 7 {
		t.Fatal("wrong state")
	}

	f = &flakyTransport{failures: 10, err: context.DeadlineExceeded}
	_, err = WithRetry(f, 3).GetTransactions(context.Background(), testAddr, 0, 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected deadline error, got", err)
	}
	if f.calls != 4 {
		t.Fatal("calls", f.calls)
	}

	f = &flakyTransport{failures: 10, err: ErrMessageNotAccepted}
	err = WithRetry(f).SendMessage(context.Background(), cell.BeginCell().EndCell())
	if !errors.Is(err, ErrMessageNotAccepted) {
		t.Fatal("expected not accepted, got", err)
	}
	if f.calls != 1 {
		t.Fatal("non transient error should not be repeated, calls", f.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f = &flakyTransport{failures: 10, err: transient}
	err = WithRetry(f).SendMessage(ctx, cell.BeginCell().EndCell())
	if !errors.Is(err, ErrTransient) {
		t.Fatal("expected transient error, got", err)
	}
	if f.calls != 1 {
		t.Fatal("calls after cancel", f.calls)
	}
}

func TestWithTimeout(t *testing.T) {
	f := &flakyTransport{}
	tr := WithTimeout(f, 50*time.Millisecond)

	if err := tr.SendMessage(context.Background(), cell.BeginCell().EndCell()); err != nil {
		t.Fatal(err)
	}
	if !f.deadline {
		t.Fatal("deadline is not set")
	}

	f.deadline = false
	if _, err := tr.GetTransactions(context.Background(), testAddr, 0, 1); err != nil {
		t.Fatal(err)
	}
	if !f.deadline {
		t.Fatal("deadline is not set")
	}
}

func TestSendExternalMessage(t *testing.T) {
	off := NewOffline(nil)

	msg := externalMessage(42)
	if err := SendExternalMessage(context.Background(), off, msg); err != nil {
		t.Fatal(err)
	}

	sent := off.Sent()
	if len(sent) != 1 {
		t.Fatal("sent", len(sent))
	}

	want, _ := msg.ToCell()
	if !bytes.Equal(sent[0].Hash(), want.Hash()) {
		t.Fatal("sent message differs")
	}
}

func TestOffline(t *testing.T) {
	ctx := context.Background()

	var seen *cell.Cell
	exec := ExecutorFunc(func(msg, account *cell.Cell) (*cell.Cell, *cell.Cell, error) {
		seen = account
		body := msg.BeginParse()
		var m tlb.ExternalMessage
		if err := m.LoadFromCell(body); err != nil {
			return nil, nil, err
		}
		val := m.Body.BeginParse().MustLoadUInt(64)
		if val == 0 {
			return nil, nil, errors.New("zero is rejected")
		}

		tx := cell.BeginCell().MustStoreUInt(val, 64).EndCell()
		state := cell.BeginCell().MustStoreUInt(val*2, 64).EndCell()
		return tx, state, nil
	})

	off := NewOffline(exec)

	if _, err := off.GetAccountState(ctx, testAddr); !errors.Is(err, ErrAccountNotFound) {
		t.Fatal("expected not found, got", err)
	}

	if err := SendExternalMessage(ctx, off, externalMessage(5)); err != nil {
		t.Fatal(err)
	}
	if seen != nil {
		t.Fatal("account should not exist before the first message")
	}

	state, err := off.GetAccountState(ctx, testAddr)
	if err != nil {
		t.Fatal(err)
	}
	if v := state.BeginParse().MustLoadUInt(64); v != 10 {
		t.Fatal("state", v)
	}

	if err = SendExternalMessage(ctx, off, externalMessage(6)); err != nil {
		t.Fatal(err)
	}
	if seen == nil || !bytes.Equal(seen.Hash(), state.Hash()) {
		t.Fatal("executor got wrong state")
	}

	err = SendExternalMessage(ctx, off, externalMessage(0))
	if !errors.Is(err, ErrMessageNotAccepted) {
		t.Fatal("expected not accepted, got", err)
	}
	if len(off.Sent()) != 3 {
		t.Fatal("sent", len(off.Sent()))
	}

	internal := &tlb.InternalMessage{
		SrcAddr: testAddr,
		DstAddr: testAddr,
		Amount:  tlb.MustFromTON("1"),
		Body:    cell.BeginCell().EndCell(),
	}
	ic, err := internal.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	if err = off.SendMessage(ctx, ic); !errors.Is(err, tlb.ErrUnknownMessageType) {
		t.Fatal("expected message type error, got", err)
	}

	lt := off.AddTransaction(testAddr, cell.BeginCell().MustStoreUInt(7, 64).EndCell())
	if lt != 3 {
		t.Fatal("lt", lt)
	}

	txs, err := off.GetTransactions(ctx, testAddr, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	var got []uint64
	for _, tx := range txs {
		got = append(got, tx.BeginParse().MustLoadUInt(64))
	}
	if fmt.Sprint(got) != "[7 6 5]" {
		t.Fatal("transactions", got)
	}

	txs, _ = off.GetTransactions(ctx, testAddr, 2, 1)
	if len(txs) != 1 || txs[0].BeginParse().MustLoadUInt(64) != 6 {
		t.Fatal("wrong page")
	}

	off.SetAccountState(testAddr, nil)
	if _, err = off.GetAccountState(ctx, testAddr); !errors.Is(err, ErrAccountNotFound) {
		t.Fatal("expected not found after reset, got", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err = off.GetTransactions(cctx, testAddr, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatal("expected canceled, got", err)
	}
}

func TestExecuteExternal(t *testing.T) {
	msg := externalMessage(9)
	want, _ := msg.ToCell()

	tx, state, err := ExecuteExternal(ExecutorFunc(func(m, account *cell.Cell) (*cell.Cell, *cell.Cell, error) {
		if !bytes.Equal(m.Hash(), want.Hash()) {
			return nil, nil, errors.New("wrong message")
		}
		return m, account, nil
	}), msg, cell.BeginCell().MustStoreUInt(1, 1).EndCell())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tx.Hash(), want.Hash()) || state.BitsSize() != 1 {
		t.Fatal("wrong result")
	}

	_, _, err = ExecuteExternal(ExecutorFunc(func(m, account *cell.Cell) (*cell.Cell, *cell.Cell, error) {
		return nil, nil, ErrMessageNotAccepted
	}), msg, nil)
	if !errors.Is(err, ErrMessageNotAccepted) {
		t.Fatal("expected not accepted, got", err)
	}
}
