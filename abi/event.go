package abi

import (
	"fmt"

	"github.com/broxus/nekoton-go/tvm/cell"
)

type Event struct {
	Name    string
	Version Version
	ID      uint32
	Inputs  []Param
}

func NewEvent(name string, version Version, inputs []Param) *Event {
	e := &Event{Name: name, Version: version, Inputs: inputs}
	e.ID = selectorID(e.Signature()) & inputIDMask
	return e
}

func (e *Event) Signature() string {
	return fmt.Sprintf("%s(%s)v%d", e.Name, typeList(e.Inputs), e.Version.Major)
}

// EncodeMessageBody builds an event body as a contract emits it.
func (e *Event) EncodeMessageBody(tokens []Token) (*cell.Cell, error) {
	p := newPacker(e.Version)
	units, err := p.params(e.Inputs, tokens)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", e.Name, err)
	}

	b, err := p.chain(append([]unit{idUnit(e.ID)}, units...))
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", e.Name, err)
	}
	return b.EndCell(), nil
}

func (e *Event) DecodeMessageBody(body *cell.Cell, allowPartial bool) ([]Token, error) {
	d := newDecoder(e.Version, allowPartial)

	id, s, err := d.readID(body.BeginParse())
	if err != nil {
		return nil, err
	}
	if id != e.ID {
		return nil, fmt.Errorf("%w: event %q expects 0x%08x, got 0x%08x", ErrWrongID, e.Name, e.ID, id)
	}

	tokens, rest, err := d.params(e.Inputs, s, 0)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", e.Name, err)
	}
	if err = d.finish(rest); err != nil {
		return nil, fmt.Errorf("event %q: %w", e.Name, err)
	}
	return tokens, nil
}
