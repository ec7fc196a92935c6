package abi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/broxus/nekoton-go/tvm/cell"
)

// Contract is a parsed contract interface. It is never modified after parsing,
// so it can be shared between goroutines.
type Contract struct {
	Version   Version
	Header    []Param
	Functions map[string]*Function
	Events    map[string]*Event
	Data      []DataParam
	Fields    []Param
}

// DataParam is an init data variable stored under a fixed dictionary key.
type DataParam struct {
	Key uint64
	Param
}

type contractJSON struct {
	ABIVersion *Version          `json:"ABI version"`
	Version    *Version          `json:"version"`
	Header     []json.RawMessage `json:"header"`
	Functions  []functionJSON    `json:"functions"`
	Events     []eventJSON       `json:"events"`
	Data       []dataJSON        `json:"data"`
	Fields     []jsonParam       `json:"fields"`
}

type functionJSON struct {
	Name    string      `json:"name"`
	Inputs  []jsonParam `json:"inputs"`
	Outputs []jsonParam `json:"outputs"`
	ID      *selector   `json:"id"`
}

type eventJSON struct {
	Name   string      `json:"name"`
	Inputs []jsonParam `json:"inputs"`
	ID     *selector   `json:"id"`
}

type dataJSON struct {
	Key uint64 `json:"key"`
	jsonParam
}

// selector is an explicit id, written as a number or a hex string.
type selector uint32

func (s *selector) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		str = string(data)
	}

	base := 10
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		str, base = str[2:], 16
	}

	v, err := strconv.ParseUint(str, base, 32)
	if err != nil {
		return fmt.Errorf("%w: bad id %s", ErrInvalidSchema, string(data))
	}
	*s = selector(v)
	return nil
}

// ParseContract loads a contract interface from its json description.
func ParseContract(data []byte) (*Contract, error) {
	var raw contractJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	c := &Contract{
		Version:   DefaultVersion,
		Functions: map[string]*Function{},
		Events:    map[string]*Event{},
	}
	switch {
	case raw.Version != nil:
		c.Version = *raw.Version
	case raw.ABIVersion != nil:
		c.Version = *raw.ABIVersion
	}

	for _, h := range raw.Header {
		p, err := parseHeaderParam(h)
		if err != nil {
			return nil, err
		}
		c.Header = append(c.Header, p)
	}

	inputIDs := map[uint32]string{}
	for _, fj := range raw.Functions {
		f, err := c.parseFunction(fj)
		if err != nil {
			return nil, err
		}
		if _, ok := c.Functions[f.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate function %q", ErrInvalidSchema, f.Name)
		}
		if other, ok := inputIDs[f.InputID]; ok {
			return nil, fmt.Errorf("%w: %w: functions %q and %q have id 0x%08x", ErrInvalidSchema, ErrDuplicateID, other, f.Name, f.InputID)
		}
		inputIDs[f.InputID] = f.Name
		c.Functions[f.Name] = f
	}

	eventIDs := map[uint32]string{}
	for _, ej := range raw.Events {
		inputs, err := parseParams(ej.Inputs, 0)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", ej.Name, err)
		}

		e := NewEvent(ej.Name, c.Version, inputs)
		if ej.ID != nil {
			e.ID = uint32(*ej.ID)
		}
		if _, ok := c.Events[e.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate event %q", ErrInvalidSchema, e.Name)
		}
		if other, ok := eventIDs[e.ID]; ok {
			return nil, fmt.Errorf("%w: %w: events %q and %q have id 0x%08x", ErrInvalidSchema, ErrDuplicateID, other, e.Name, e.ID)
		}
		eventIDs[e.ID] = e.Name
		c.Events[e.Name] = e
	}

	keys := map[uint64]bool{}
	for _, dj := range raw.Data {
		p, err := dj.toParam(0)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		if keys[dj.Key] {
			return nil, fmt.Errorf("%w: duplicate data key %d", ErrInvalidSchema, dj.Key)
		}
		keys[dj.Key] = true
		c.Data = append(c.Data, DataParam{Key: dj.Key, Param: p})
	}

	fields, err := parseParams(raw.Fields, 0)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	c.Fields = fields

	return c, nil
}

func parseHeaderParam(raw json.RawMessage) (Param, error) {
	var jp jsonParam
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		jp = jsonParam{Name: name, Type: name}
	} else if err = json.Unmarshal(raw, &jp); err != nil {
		return Param{}, fmt.Errorf("%w: bad header %s", ErrInvalidSchema, string(raw))
	}

	p, err := jp.toParam(0)
	if err != nil {
		return Param{}, fmt.Errorf("header: %w", err)
	}
	switch p.Type.Kind {
	case KindTime, KindExpire, KindPublicKey:
	default:
		return Param{}, fmt.Errorf("%w: unsupported header type %s", ErrInvalidSchema, p.Type)
	}
	return p, nil
}

func (c *Contract) parseFunction(fj functionJSON) (*Function, error) {
	inputs, err := parseParams(fj.Inputs, 0)
	if err != nil {
		return nil, fmt.Errorf("function %q inputs: %w", fj.Name, err)
	}
	outputs, err := parseParams(fj.Outputs, 0)
	if err != nil {
		return nil, fmt.Errorf("function %q outputs: %w", fj.Name, err)
	}

	f := NewFunction(fj.Name, c.Version, c.Header, inputs, outputs)
	if fj.ID != nil {
		f.InputID = uint32(*fj.ID) & inputIDMask
		f.OutputID = uint32(*fj.ID) | outputIDFlag
	}
	return f, nil
}

// SortedFunctions returns functions ordered by name.
func (c *Contract) SortedFunctions() []*Function {
	names := maps.Keys(c.Functions)
	slices.Sort(names)

	res := make([]*Function, 0, len(names))
	for _, n := range names {
		res = append(res, c.Functions[n])
	}
	return res
}

// SortedEvents returns events ordered by name.
func (c *Contract) SortedEvents() []*Event {
	names := maps.Keys(c.Events)
	slices.Sort(names)

	res := make([]*Event, 0, len(names))
	for _, n := range names {
		res = append(res, c.Events[n])
	}
	return res
}

// GuessFunctionByInput reads the selector of a call body and returns the
// function it belongs to, or nil when no function matches.
func (c *Contract) GuessFunctionByInput(body *cell.Cell, internal bool) (*Function, error) {
	d := newDecoder(c.Version, true)

	s := body.BeginParse()
	if !internal {
		var err error
		if s, err = d.skipSignature(s); err != nil {
			return nil, err
		}
		if _, s, err = d.params(c.Header, s, 0); err != nil {
			return nil, err
		}
	}

	id, _, err := d.readID(s)
	if err != nil {
		return nil, err
	}

	for _, f := range c.SortedFunctions() {
		if f.InputID == id {
			return f, nil
		}
	}
	return nil, nil
}

// GuessFunctionByOutput returns the function whose answer id matches the body.
func (c *Contract) GuessFunctionByOutput(body *cell.Cell) (*Function, error) {
	id, _, err := newDecoder(c.Version, true).readID(body.BeginParse())
	if err != nil {
		return nil, err
	}

	for _, f := range c.SortedFunctions() {
		if f.OutputID == id {
			return f, nil
		}
	}
	return nil, nil
}

// GuessEvent returns the event whose id matches the body.
func (c *Contract) GuessEvent(body *cell.Cell) (*Event, error) {
	id, _, err := newDecoder(c.Version, true).readID(body.BeginParse())
	if err != nil {
		return nil, err
	}

	for _, e := range c.SortedEvents() {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}
