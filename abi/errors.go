package abi

import (
	"errors"

	"github.com/broxus/nekoton-go/crypto"
	"github.com/broxus/nekoton-go/tvm/cell"
)

var (
	ErrInvalidSchema  = errors.New("invalid abi")
	ErrDuplicateID    = errors.New("duplicate selector id")
	ErrUnsupportedKey = errors.New("unsupported map key type")
	ErrNestingTooDeep = errors.New("abi types are nested too deep")

	ErrTypeMismatch    = errors.New("token value does not match param type")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrValueOutOfRange = errors.New("value is out of range")
	ErrDuplicateKey    = errors.New("duplicate map key")

	ErrIncompleteDecode = errors.New("cell was not fully decoded")
	ErrWrongID          = errors.New("unexpected function or event id")
)

// ErrorCategory groups codec errors by how the caller should react to them.
type ErrorCategory int

const (
	UnknownError ErrorCategory = iota
	SchemaError
	CapacityError
	TypeMismatchError
	FormatError
	CryptoError
)

func (c ErrorCategory) String() string {
	switch c {
	case SchemaError:
		return "schema"
	case CapacityError:
		return "capacity"
	case TypeMismatchError:
		return "type mismatch"
	case FormatError:
		return "format"
	case CryptoError:
		return "crypto"
	}
	return "unknown"
}

// Recoverable is false only for schema errors, a broken abi can not be fixed by retrying a call.
func (c ErrorCategory) Recoverable() bool {
	return c != SchemaError
}

var categories = []struct {
	category ErrorCategory
	errs     []error
}{
	{SchemaError, []error{ErrInvalidSchema, ErrDuplicateID, ErrUnsupportedKey, ErrNestingTooDeep}},
	{TypeMismatchError, []error{ErrTypeMismatch, ErrLengthMismatch, ErrValueOutOfRange, ErrDuplicateKey, ErrWrongID, cell.ErrTooBigValue, cell.ErrNegative}},
	{CapacityError, []error{cell.ErrOverflow, cell.ErrUnderflow, ErrIncompleteDecode}},
	{FormatError, []error{cell.ErrInvalidBOC, cell.ErrInvalidCell, cell.ErrTooBigSize, cell.ErrSmallSlice}},
	{CryptoError, []error{crypto.ErrInvalidSignature, crypto.ErrInvalidKey, crypto.ErrInvalidPhrase}},
}

// Classify maps an error returned by this module to its category.
func Classify(err error) ErrorCategory {
	if err == nil {
		return UnknownError
	}

	for _, c := range categories {
		for _, e := range c.errs {
			if errors.Is(err, e) {
				return c.category
			}
		}
	}
	return UnknownError
}
