package tlb

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/tvm/cell"
)

func TestInternalMessage_ToCell(t *testing.T) {
	src := address.MustParseAddr("EQAOp1zuKuX4zY6L9rEdSLam7J3gogIHhfRu_gH70u2MQnmd")
	dst := address.MustParseAddr("EQA_B407fiLIlE5VYZCaI2rki0in6kLyjdhhwitvZNfpe7eY")

	intMsg := InternalMessage{
		Bounce:  true,
		SrcAddr: src,
		DstAddr: dst,
		Amount:  MustFromTON("0.05"),
		StateInit: &StateInit{
			Data: cell.BeginCell().EndCell(),
			Code: cell.BeginCell().EndCell(),
		},
		Body:      cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake("hello").EndCell(),
		CreatedLT: 77,
		CreatedAt: 1700000000,
	}

	c, err := intMsg.ToCell()
	if err != nil {
		t.Fatal("to cell err", err)
	}

	var intMsg2 InternalMessage
	if err = intMsg2.LoadFromCell(c.BeginParse()); err != nil {
		t.Fatal("from cell err", err)
	}

	if intMsg.SrcAddr.StringRaw() != intMsg2.SrcAddr.StringRaw() {
		t.Fatal("not eq src")
	}
	if intMsg.DstAddr.StringRaw() != intMsg2.DstAddr.StringRaw() {
		t.Fatal("not eq dst")
	}
	if intMsg.Amount.Cmp(intMsg2.Amount) != 0 {
		t.Fatal("not eq amount", intMsg.Amount.Nano(), intMsg2.Amount.Nano())
	}
	if !intMsg2.Bounce || intMsg2.Bounced || intMsg2.CreatedLT != 77 || intMsg2.CreatedAt != 1700000000 {
		t.Fatal("not eq flags")
	}
	if intMsg2.StateInit == nil || !intMsg2.StateInit.Code.Equal(cell.BeginCell().EndCell()) {
		t.Fatal("state init lost")
	}
	if intMsg2.Comment() != "hello" {
		t.Fatal("wrong comment", intMsg2.Comment())
	}
}

func TestCornerMessage(t *testing.T) {
	msgBoc, _ := hex.DecodeString("b5ee9c724101020100860001b36800bf4c6bdca25797e55d700c1a5448e2af5d1ac16f9a9628719a4e1eb2b44d85e33fd104a366f6fb17799871f82e00e4f2eb8ae6aaf6d3e0b3fb346cd0208e23725e14094ba15d20071f12260000446ee17a9b0cc8c028d8c001004d8002b374733831aac3455708e8f1d2c7f129540b982d3a5de8325bf781083a8a3d2a04a7f943813277f3ea")

	c, err := cell.FromBOC(msgBoc)
	if err != nil {
		t.Fatal(err)
	}

	var m InternalMessage
	if err = m.LoadFromCell(c.BeginParse()); err != nil {
		t.Fatal(err)
	}

	c2, err := m.ToCell()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(c.Hash(), c2.Hash()) {
		t.Fatal("hash not match")
	}
}

func TestMessage_LoadFromCell(t *testing.T) {
	body := cell.BeginCell().MustStoreUInt(777, 27).EndCell()

	tests := []struct {
		name string
		msg  AnyMessage
		want MsgType
	}{
		{"internal", &InternalMessage{Bounce: true, Body: body}, MsgTypeInternal},
		{"external in", &ExternalMessage{Body: body}, MsgTypeExternalIn},
		{"external out", &ExternalMessageOut{Body: body}, MsgTypeExternalOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.msg.ToCell()
			if err != nil {
				t.Fatal(err)
			}

			var msg Message
			if err = msg.LoadFromCell(c.BeginParse()); err != nil {
				t.Fatal(err)
			}
			if msg.MsgType != tt.want {
				t.Errorf("wrong msg type, want %s, got %s", tt.want, msg.MsgType)
			}
			if !msg.Msg.Payload().Equal(body) {
				t.Error("body not matches")
			}

			c2, err := msg.ToCell()
			if err != nil {
				t.Fatal(err)
			}
			if !c.Equal(c2) {
				t.Error("reserialized message differs")
			}
		})
	}
}

func TestMessage_AsWrongType(t *testing.T) {
	msg := Message{MsgType: MsgTypeExternalIn, Msg: &ExternalMessage{}}
	if msg.AsInternal() != nil || msg.AsExternalOut() != nil || msg.AsExternalIn() == nil {
		t.Fatal("wrong cast")
	}

	if _, err := (&Message{}).ToCell(); err == nil {
		t.Fatal("empty message should fail")
	}
}

func TestExternalMessage_BodyPlacement(t *testing.T) {
	dst := address.MustParseAddr("EQA_B407fiLIlE5VYZCaI2rki0in6kLyjdhhwitvZNfpe7eY")

	small := cell.BeginCell().MustStoreUInt(1, 32).EndCell()
	big := cell.BeginCell().MustStoreSlice(make([]byte, 127), 1016).EndCell()

	for _, body := range []*cell.Cell{small, big} {
		m := &ExternalMessage{
			DstAddr:   dst,
			StateInit: &StateInit{Code: small, Data: small},
			Body:      body,
		}

		c, err := m.ToCell()
		if err != nil {
			t.Fatal(err)
		}

		var m2 ExternalMessage
		if err = m2.LoadFromCell(c.BeginParse()); err != nil {
			t.Fatal(err)
		}
		if !m2.Body.Equal(body) {
			t.Fatal("body not matches")
		}
		if !m2.StateInit.Data.Equal(small) {
			t.Fatal("state init not matches")
		}

		// state init is inline with its 2 refs, a body ref makes the third one
		bodyInRef := c.RefsNum() == 3
		if (body == big) != bodyInRef {
			t.Fatalf("unexpected body placement, %d bits %d refs", c.BitsSize(), c.RefsNum())
		}
	}
}

func TestExternalMessage_NormalizedHash(t *testing.T) {
	dst := address.MustParseAddr("EQA_B407fiLIlE5VYZCaI2rki0in6kLyjdhhwitvZNfpe7eY")
	body := cell.BeginCell().MustStoreUInt(0xdeadbeef, 32).EndCell()

	inline := &ExternalMessage{DstAddr: dst, Body: body}
	withInit := &ExternalMessage{
		SrcAddr:   address.NewAddressNone(),
		DstAddr:   dst,
		ImportFee: MustFromTON("1"),
		StateInit: &StateInit{Code: body},
		Body:      body,
	}

	h1, err := inline.NormalizedHash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := withInit.NormalizedHash()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(h1, h2) {
		t.Fatal("normalized hashes differ")
	}

	c, _ := inline.ToCell()
	if bytes.Equal(c.Hash(), h1) {
		t.Fatal("inline body should change plain hash")
	}
}
