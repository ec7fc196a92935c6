package address

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

var (
	testData1 = []byte{186, 41, 94, 51, 179, 196, 201, 181, 38, 90, 164, 234, 209, 22, 106, 146, 147, 28, 233, 171, 234, 18, 10, 140, 94, 145, 4, 74, 18, 87, 248, 156}
	testData2 = []byte{147, 13, 85, 51, 152, 10, 186, 17, 252, 216, 24, 69, 169, 84, 235, 245, 235, 42, 62, 31, 149, 112, 220, 29, 43, 146, 215, 34, 119, 63, 212, 44}
)

func stdAddr(f flags, wc int32, data []byte) *Address {
	return &Address{flags: f, addrType: StdAddress, workchain: wc, bitsLen: 256, data: data}
}

func TestAddress_Checksum(t *testing.T) {
	tests := []struct {
		name string
		addr *Address
		want uint16
	}{
		{"1", stdAddr(flags{bounceable: true}, 0, testData1), 11592},
		{"2", stdAddr(flags{bounceable: true}, 0, testData2), 58659},
		{"3", stdAddr(flags{}, 0, testData1), 28813},
		{"4", stdAddr(flags{bounceable: true, testnet: true}, 0, testData2), 24233},
		{"5", stdAddr(flags{bounceable: true, testnet: true}, 1, testData2), 54133},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.Checksum(); got != tt.want {
				t.Errorf("Checksum() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddress_String(t *testing.T) {
	tests := []struct {
		name string
		addr *Address
		want string
	}{
		{"1", stdAddr(flags{bounceable: true}, 0, testData1), "EQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nC1I"},
		{"2", stdAddr(flags{bounceable: true}, 0, testData2), "EQCTDVUzmAq6EfzYGEWpVOv16yo-H5Vw3B0rktcidz_ULOUj"},
		{"3", stdAddr(flags{}, 0, testData1), "UQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nHCN"},
		{"4", stdAddr(flags{bounceable: true, testnet: true}, 0, testData1), "kQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nJbC"},
		{"5", stdAddr(flags{testnet: true}, 1, testData2), "0QGTDVUzmAq6EfzYGEWpVOv16yo-H5Vw3B0rktcidz_ULI6w"},
		{"none", NewAddressNone(), "NONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustParseAddr(t *testing.T) {
	tests := []struct {
		name string
		args string
		want *Address
	}{
		{"1", "EQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nC1I", stdAddr(flags{bounceable: true}, 0, testData1)},
		{"2", "UQCTDVUzmAq6EfzYGEWpVOv16yo-H5Vw3B0rktcidz_ULLjm", stdAddr(flags{}, 0, testData2)},
		{"3", "kQCTDVUzmAq6EfzYGEWpVOv16yo-H5Vw3B0rktcidz_ULF6p", stdAddr(flags{bounceable: true, testnet: true}, 0, testData2)},
		{"4", "0QG6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nEbb", stdAddr(flags{testnet: true}, 1, testData1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MustParseAddr(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MustParseAddr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseAddr_BadChecksum(t *testing.T) {
	_, err := ParseAddr("EQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nC1J")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatal("expected invalid address, got", err)
	}

	_, err = ParseAddr("EQC6KV4z")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatal("expected invalid address on short input, got", err)
	}
}

func TestParseRawAddr(t *testing.T) {
	a, err := ParseRawAddr("-1:1212121212121212121212121212121212121212121212121212121212121212")
	if err != nil {
		t.Fatal(err)
	}
	if a.Workchain() != -1 || a.Type() != StdAddress || a.BitsLen() != 256 {
		t.Fatal("bad std address", a.StringRaw())
	}
	if a.StringRaw() != "-1:1212121212121212121212121212121212121212121212121212121212121212" {
		t.Fatal("raw string mismatch", a.StringRaw())
	}

	v, err := ParseRawAddr("1000:1234")
	if err != nil {
		t.Fatal(err)
	}
	if v.Type() != VarAddress || v.BitsLen() != 16 || v.Workchain() != 1000 {
		t.Fatal("bad var address", v.StringRaw())
	}

	for _, bad := range []string{"", "abc", ":00", "0:zz"} {
		if _, err = ParseRawAddr(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Fatal("expected error for", bad)
		}
	}
}

func TestParseAny(t *testing.T) {
	friendly := MustParseAddr("EQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nC1I")

	raw, err := ParseAny(friendly.StringRaw())
	if err != nil {
		t.Fatal(err)
	}
	if !raw.Equals(friendly) {
		t.Fatal("raw and friendly forms should be equal")
	}

	back, err := ParseAny(raw.String())
	if err != nil {
		t.Fatal(err)
	}
	if back.Compare(friendly) != 0 {
		t.Fatal("compare should be 0")
	}
}

func TestAddress_Flags(t *testing.T) {
	a := stdAddr(flags{}, 0, testData1)
	a.SetBounce(true)
	a.SetTestnetOnly(true)
	if !a.IsBounceable() || !a.IsTestnetOnly() {
		t.Fatal("flags not applied")
	}

	c := a.Copy()
	c.data[0] = 0
	if bytes.Equal(c.data, a.data) {
		t.Fatal("copy shares data")
	}
}
