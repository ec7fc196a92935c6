package abi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// jsonParam is a parameter as it is written in abi json.
type jsonParam struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Components []jsonParam `json:"components,omitempty"`
}

func (p jsonParam) toParam(depth int) (Param, error) {
	t, err := parseType(p.Type, p.Components, depth)
	if err != nil {
		return Param{}, fmt.Errorf("param %q: %w", p.Name, err)
	}
	return Param{Name: p.Name, Type: t}, nil
}

func parseParams(params []jsonParam, depth int) ([]Param, error) {
	res := make([]Param, 0, len(params))
	for _, p := range params {
		param, err := p.toParam(depth)
		if err != nil {
			return nil, err
		}
		res = append(res, param)
	}
	return res, nil
}

// ParseType parses a type name like "uint32", "map(address,uint128)" or
// "optional(cell)". Tuples need components.
func ParseType(typ string, components ...Param) (ParamType, error) {
	jc := make([]jsonParam, len(components))
	for i, c := range components {
		jc[i] = toJSONParam(c)
	}

	t, err := parseType(typ, jc, 0)
	if err != nil {
		return ParamType{}, err
	}
	return t, nil
}

func toJSONParam(p Param) jsonParam {
	jp := jsonParam{Name: p.Name, Type: p.Type.jsonName()}
	for _, c := range p.Type.tupleComponents() {
		jp.Components = append(jp.Components, toJSONParam(c))
	}
	return jp
}

// jsonName is the type name as abi json writes it, tuples are "tuple" there.
func (t ParamType) jsonName() string {
	switch t.Kind {
	case KindTuple:
		return "tuple"
	case KindArray:
		return t.Elem.jsonName() + "[]"
	case KindFixedArray:
		return t.Elem.jsonName() + "[" + strconv.Itoa(t.Size) + "]"
	case KindMap:
		return "map(" + t.Key.jsonName() + "," + t.Elem.jsonName() + ")"
	case KindOptional, KindRef:
		return t.Kind.String() + "(" + t.Elem.jsonName() + ")"
	}
	return t.String()
}

// tupleComponents returns components of the innermost tuple, json keeps them on the param.
func (t ParamType) tupleComponents() []Param {
	switch t.Kind {
	case KindTuple:
		return t.Components
	case KindArray, KindFixedArray, KindOptional, KindRef, KindMap:
		return t.Elem.tupleComponents()
	}
	return nil
}

func parseType(typ string, components []jsonParam, depth int) (ParamType, error) {
	if depth > MaxNestingDepth {
		return ParamType{}, fmt.Errorf("%w: more than %d levels", ErrNestingTooDeep, MaxNestingDepth)
	}

	typ = strings.TrimSpace(typ)

	if strings.HasSuffix(typ, "]") {
		open := strings.LastIndex(typ, "[")
		if open < 0 {
			return ParamType{}, fmt.Errorf("%w: bad array type %q", ErrInvalidSchema, typ)
		}

		elem, err := parseType(typ[:open], components, depth+1)
		if err != nil {
			return ParamType{}, err
		}

		size := typ[open+1 : len(typ)-1]
		if size == "" {
			return Array(elem), nil
		}

		n, err := strconv.Atoi(size)
		if err != nil || n < 0 {
			return ParamType{}, fmt.Errorf("%w: bad fixed array size %q", ErrInvalidSchema, size)
		}
		return FixedArray(elem, n), nil
	}

	if name, inner, ok := splitGeneric(typ); ok {
		switch name {
		case "optional", "ref":
			t, err := parseType(inner, components, depth+1)
			if err != nil {
				return ParamType{}, err
			}
			if name == "ref" {
				return Ref(t), nil
			}
			return Optional(t), nil
		case "map":
			key, value, ok := splitTopLevel(inner)
			if !ok {
				return ParamType{}, fmt.Errorf("%w: bad map type %q", ErrInvalidSchema, typ)
			}

			k, err := parseType(key, nil, depth+1)
			if err != nil {
				return ParamType{}, err
			}
			switch k.Kind {
			case KindUint, KindInt, KindAddress:
			default:
				return ParamType{}, fmt.Errorf("%w: %s", ErrUnsupportedKey, key)
			}

			v, err := parseType(value, components, depth+1)
			if err != nil {
				return ParamType{}, err
			}
			return Map(k, v), nil
		}
		return ParamType{}, fmt.Errorf("%w: unknown type %q", ErrInvalidSchema, typ)
	}

	switch typ {
	case "bool":
		return Bool(), nil
	case "tuple":
		params, err := parseParams(components, depth+1)
		if err != nil {
			return ParamType{}, err
		}
		return Tuple(params...), nil
	case "cell":
		return Cell(), nil
	case "address":
		return Address(), nil
	case "bytes":
		return Bytes(), nil
	case "string":
		return String(), nil
	case "gram", "token":
		return TokenAmount(), nil
	case "time":
		return Time(), nil
	case "expire":
		return Expire(), nil
	case "pubkey":
		return PublicKey(), nil
	}

	for _, p := range []struct {
		prefix string
		make   func(int) ParamType
	}{
		{"fixedbytes", FixedBytes},
		{"varuint", VarUint},
		{"varint", VarInt},
		{"uint", Uint},
		{"int", Int},
	} {
		if !strings.HasPrefix(typ, p.prefix) {
			continue
		}

		n, err := strconv.Atoi(typ[len(p.prefix):])
		if err != nil {
			return ParamType{}, fmt.Errorf("%w: bad type size %q", ErrInvalidSchema, typ)
		}

		t := p.make(n)
		if err = t.validate(depth); err != nil {
			return ParamType{}, err
		}
		return t, nil
	}

	return ParamType{}, fmt.Errorf("%w: unknown type %q", ErrInvalidSchema, typ)
}

// splitGeneric splits "name(inner)" into its parts.
func splitGeneric(typ string) (string, string, bool) {
	open := strings.IndexByte(typ, '(')
	if open <= 0 || !strings.HasSuffix(typ, ")") {
		return "", "", false
	}
	return typ[:open], typ[open+1 : len(typ)-1], true
}

// splitTopLevel splits "a,b" on the comma which is not inside parentheses.
func splitTopLevel(s string) (string, string, bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

func (p Param) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSONParam(p))
}

func (p *Param) UnmarshalJSON(data []byte) error {
	var jp jsonParam
	if err := json.Unmarshal(data, &jp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	param, err := jp.toParam(0)
	if err != nil {
		return err
	}
	*p = param
	return nil
}
