package abi

import (
	"crypto/ed25519"
	"fmt"

	"github.com/broxus/nekoton-go/tvm/cell"
)

const dataKeyBits = 64

func dataKey(key uint64) *cell.Cell {
	return cell.BeginCell().MustStoreUInt(key, dataKeyBits).EndCell()
}

// EncodeInitData puts the public key and init variables into a contract data
// dictionary. Existing data is updated when it is not nil.
func (c *Contract) EncodeInitData(pubkey ed25519.PublicKey, tokens []Token, data *cell.Cell) (*cell.Cell, error) {
	dict := cell.NewDict(dataKeyBits)
	if data != nil {
		var err error
		if dict, err = data.BeginParse().LoadDict(dataKeyBits); err != nil {
			return nil, fmt.Errorf("failed to load existing data: %w", err)
		}
	}

	p := newPacker(c.Version)
	for _, t := range tokens {
		param, ok := c.dataParam(t.Name)
		if !ok {
			return nil, fmt.Errorf("%w: no init data variable %q", ErrTypeMismatch, t.Name)
		}

		b, err := p.packInto(param.Type, t.Value, 0)
		if err != nil {
			return nil, fmt.Errorf("init data %q: %w", t.Name, err)
		}
		if err = dict.Set(dataKey(param.Key), cell.BeginCell().MustStoreRef(b.EndCell()).EndCell()); err != nil {
			return nil, err
		}
	}

	if pubkey != nil {
		if len(pubkey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrLengthMismatch, ed25519.PublicKeySize, len(pubkey))
		}
		if err := dict.Set(dataKey(0), cell.BeginCell().MustStoreSlice(pubkey, 256).EndCell()); err != nil {
			return nil, err
		}
	}

	b := cell.BeginCell()
	if err := b.StoreDict(dict); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

// DecodeInitData reads the public key and all init variables from contract data.
func (c *Contract) DecodeInitData(data *cell.Cell) (ed25519.PublicKey, []Token, error) {
	dict, err := data.BeginParse().LoadDict(dataKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load data dictionary: %w", err)
	}

	var pubkey ed25519.PublicKey
	if v := dict.Get(dataKey(0)); v != nil {
		key, err := v.BeginParse().LoadSlice(256)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load public key: %w", err)
		}
		pubkey = key
	}

	d := newDecoder(c.Version, false)
	tokens := make([]Token, 0, len(c.Data))
	for _, param := range c.Data {
		v := dict.Get(dataKey(param.Key))
		if v == nil {
			return nil, nil, fmt.Errorf("%w: no value for init data %q", ErrIncompleteDecode, param.Name)
		}

		ref, err := v.Ref(0)
		if err != nil {
			return nil, nil, fmt.Errorf("init data %q: %w", param.Name, err)
		}
		val, err := d.inner(param.Type, ref, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("init data %q: %w", param.Name, err)
		}
		tokens = append(tokens, Token{Name: param.Name, Value: val})
	}
	return pubkey, tokens, nil
}

func (c *Contract) dataParam(name string) (DataParam, bool) {
	for _, p := range c.Data {
		if p.Name == name {
			return p, true
		}
	}
	return DataParam{}, false
}

// EncodeFields packs contract storage fields.
func (c *Contract) EncodeFields(tokens []Token) (*cell.Cell, error) {
	return PackValues(c.Fields, tokens, c.Version)
}

// DecodeFields unpacks contract storage fields. Contracts often keep
// extra state after declared fields, allowPartial skips it.
func (c *Contract) DecodeFields(data *cell.Cell, allowPartial bool) ([]Token, error) {
	return UnpackValues(c.Fields, data, c.Version, allowPartial)
}
