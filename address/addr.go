package address

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sigurn/crc16"
)

type AddrType int

const (
	NoneAddress AddrType = 0
	ExtAddress  AddrType = 1
	StdAddress  AddrType = 2
	VarAddress  AddrType = 3
)

var ErrInvalidAddress = errors.New("invalid address")

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

type flags struct {
	bounceable bool
	testnet    bool
}

type Address struct {
	flags     flags
	addrType  AddrType
	workchain int32
	bitsLen   uint
	data      []byte
}

// NewAddress creates a standard internal address with a 256-bit account id.
func NewAddress(flags byte, workchain byte, data []byte) *Address {
	return &Address{
		flags:     parseFlags(flags),
		addrType:  StdAddress,
		workchain: int32(int8(workchain)),
		bitsLen:   256,
		data:      data,
	}
}

func NewAddressExt(flags byte, bitsLen uint, data []byte) *Address {
	return &Address{
		flags:    parseFlags(flags),
		addrType: ExtAddress,
		bitsLen:  bitsLen,
		data:     data,
	}
}

func NewAddressVar(flags byte, workchain int32, bitsLen uint, data []byte) *Address {
	return &Address{
		flags:     parseFlags(flags),
		addrType:  VarAddress,
		workchain: workchain,
		bitsLen:   bitsLen,
		data:      data,
	}
}

func NewAddressNone() *Address {
	return &Address{addrType: NoneAddress}
}

func MustParseAddr(addr string) *Address {
	a, err := ParseAddr(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddr parses a user-friendly base64 address (48 chars, url or std alphabet).
func ParseAddr(addr string) (*Address, error) {
	if len(addr) != 48 {
		return nil, fmt.Errorf("%w: incorrect user-friendly address length %d", ErrInvalidAddress, len(addr))
	}

	enc := base64.URLEncoding
	if strings.ContainsAny(addr, "+/") {
		enc = base64.StdEncoding
	}

	data, err := enc.DecodeString(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	checksum := data[len(data)-2:]
	if crc16.Checksum(data[:len(data)-2], crcTable) != binary.BigEndian.Uint16(checksum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	return &Address{
		flags:     parseFlags(data[0]),
		addrType:  StdAddress,
		workchain: int32(int8(data[1])),
		bitsLen:   256,
		data:      data[2 : len(data)-2],
	}, nil
}

func MustParseRawAddr(addr string) *Address {
	a, err := ParseRawAddr(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseRawAddr parses an address in "workchain:hex" form.
func ParseRawAddr(addr string) (*Address, error) {
	idx := strings.IndexByte(addr, ':')
	if idx <= 0 {
		return nil, fmt.Errorf("%w: raw address must be in workchain:hex form", ErrInvalidAddress)
	}

	wc, err := strconv.ParseInt(addr[:idx], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad workchain: %v", ErrInvalidAddress, err)
	}

	data, err := hex.DecodeString(addr[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: bad account id: %v", ErrInvalidAddress, err)
	}

	if len(data) != 32 || wc < -128 || wc > 127 {
		return &Address{
			flags:     flags{bounceable: true},
			addrType:  VarAddress,
			workchain: int32(wc),
			bitsLen:   uint(len(data) * 8),
			data:      data,
		}, nil
	}

	return &Address{
		flags:     flags{bounceable: true},
		addrType:  StdAddress,
		workchain: int32(wc),
		bitsLen:   256,
		data:      data,
	}, nil
}

// ParseAny accepts both raw and user-friendly forms.
func ParseAny(addr string) (*Address, error) {
	if strings.IndexByte(addr, ':') >= 0 {
		return ParseRawAddr(addr)
	}
	return ParseAddr(addr)
}

func (a *Address) String() string {
	switch a.addrType {
	case NoneAddress:
		return "NONE"
	case StdAddress:
		var buf [36]byte
		copy(buf[0:34], a.prepareChecksumData())
		binary.BigEndian.PutUint16(buf[34:], a.Checksum())
		return base64.URLEncoding.EncodeToString(buf[:])
	case ExtAddress:
		return fmt.Sprintf("EXT:%s", hex.EncodeToString(a.data))
	default:
		return a.StringRaw()
	}
}

// StringRaw returns the address in "workchain:hex" form.
func (a *Address) StringRaw() string {
	return fmt.Sprintf("%d:%s", a.workchain, hex.EncodeToString(a.data))
}

func (a *Address) Checksum() uint16 {
	return crc16.Checksum(a.prepareChecksumData(), crcTable)
}

func (a *Address) prepareChecksumData() []byte {
	var data [34]byte
	data[0] = 0b00010001
	if !a.flags.bounceable {
		data[0] = 0b01010001
	}
	if a.flags.testnet {
		data[0] |= 0b10000000
	}
	data[1] = byte(a.workchain)
	copy(data[2:34], a.data)
	return data[:]
}

func (a *Address) Dump() string {
	return fmt.Sprintf("human-readable address: %s isBounceable: %t, isTestnetOnly: %t, data.len: %d", a, a.IsBounceable(), a.IsTestnetOnly(), len(a.data))
}

func (a *Address) SetBounce(bouncable bool) {
	a.flags.bounceable = bouncable
}

func (a *Address) IsBounceable() bool {
	return a.flags.bounceable
}

func (a *Address) SetTestnetOnly(testnetOnly bool) {
	a.flags.testnet = testnetOnly
}

func (a *Address) IsTestnetOnly() bool {
	return a.flags.testnet
}

func (a *Address) Workchain() int32 {
	return a.workchain
}

func (a *Address) Type() AddrType {
	return a.addrType
}

func (a *Address) BitsLen() uint {
	return a.bitsLen
}

func (a *Address) Data() []byte {
	return a.data
}

func (a *Address) IsAddrNone() bool {
	return a.addrType == NoneAddress
}

// Equals compares type, workchain and account id, ignoring user-friendly flags.
func (a *Address) Equals(b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.addrType == b.addrType && a.workchain == b.workchain &&
		a.bitsLen == b.bitsLen && bytes.Equal(a.data, b.data)
}

// Compare orders addresses by workchain and then by account id bytes.
func (a *Address) Compare(b *Address) int {
	switch {
	case a.workchain < b.workchain:
		return -1
	case a.workchain > b.workchain:
		return 1
	}
	return bytes.Compare(a.data, b.data)
}

func (a *Address) Copy() *Address {
	return &Address{
		flags:     a.flags,
		addrType:  a.addrType,
		workchain: a.workchain,
		bitsLen:   a.bitsLen,
		data:      append([]byte{}, a.data...),
	}
}

func parseFlags(data byte) flags {
	return flags{
		bounceable: !hasBit(data, 6),
		testnet:    hasBit(data, 7),
	}
}
