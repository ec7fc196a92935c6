package tlb

import (
	"errors"
	"testing"

	"github.com/broxus/nekoton-go/tvm/cell"
)

func TestStateInit_CalcAddress(t *testing.T) {
	tests := []struct {
		name      string
		stateInit StateInit
		workchain int32
		want      string
	}{
		{
			name: "Base",
			stateInit: StateInit{
				Code: cell.BeginCell().MustStoreUInt(0, 8).EndCell(),
				Data: cell.BeginCell().MustStoreUInt(0, 8).EndCell(),
			},
			want: "EQBPQF6r6-pUObVWu6RO05YwoHQRnjM95tRLAL_s2A6n0pvq",
		},
		{
			name: "Empty",
			want: "EQA_B407fiLIlE5VYZCaI2rki0in6kLyjdhhwitvZNfpe7eY",
		},
		{
			name: "Master",
			stateInit: StateInit{
				Code: cell.BeginCell().MustStoreUInt(123, 8).EndCell(),
				Data: cell.BeginCell().MustStoreUInt(456, 16).EndCell(),
			},
			workchain: -1,
			want:      "Ef_jHHi5wLtyTaS56iIEPUc9mJuoD2keQPxZX87rl2FcVDZ1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stateInit.CalcAddress(tt.workchain)
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Errorf("StateInit.CalcAddress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateInit_LoadFromCell(t *testing.T) {
	depth := uint8(3)
	si := StateInit{
		SplitDepth: &depth,
		Special:    &TickTock{Tock: true},
		Code:       cell.BeginCell().MustStoreUInt(1, 8).EndCell(),
	}

	c, err := si.ToCell()
	if err != nil {
		t.Fatal(err)
	}

	var got StateInit
	if err = got.LoadFromCell(c.BeginParse()); err != nil {
		t.Fatal(err)
	}

	if got.SplitDepth == nil || *got.SplitDepth != 3 {
		t.Fatal("split depth lost")
	}
	if got.Special == nil || got.Special.Tick || !got.Special.Tock {
		t.Fatal("tick tock lost")
	}
	if !got.Code.Equal(si.Code) || got.Data != nil || got.Lib != nil {
		t.Fatal("refs not match")
	}

	bad := uint8(40)
	si.SplitDepth = &bad
	if _, err = si.ToCell(); err == nil {
		t.Fatal("split depth over 5 bits should fail")
	}
}

func TestStateInit_CodeSalt(t *testing.T) {
	selector := cell.BeginCell().MustStoreUInt(0xAB, 8).EndCell()
	code := cell.BeginCell().MustStoreSlice([]byte{0x8a, 0xdb, 0x35}, 24).MustStoreRef(selector).EndCell()
	si := &StateInit{Code: code}

	salt, err := si.GetCodeSalt()
	if err != nil || salt != nil {
		t.Fatal("code should have no salt", err)
	}

	first := cell.BeginCell().MustStoreUInt(1, 32).EndCell()
	if err = si.SetCodeSalt(first); err != nil {
		t.Fatal(err)
	}
	second := cell.BeginCell().MustStoreUInt(2, 32).EndCell()
	if err = si.SetCodeSalt(second); err != nil {
		t.Fatal(err)
	}

	if si.Code.RefsNum() != 2 || si.Code.BitsSize() != 24 {
		t.Fatal("unexpected code layout")
	}

	salt, err = si.GetCodeSalt()
	if err != nil {
		t.Fatal(err)
	}
	if !salt.Equal(second) {
		t.Fatal("salt not replaced")
	}

	plain := &StateInit{Code: cell.BeginCell().MustStoreUInt(0xFF00F4A4, 32).EndCell()}
	if err = plain.SetCodeSalt(first); !errors.Is(err, ErrUnsupportedCode) {
		t.Fatal("plain code should not be salted", err)
	}
	if _, err = (&StateInit{}).GetCodeSalt(); !errors.Is(err, ErrUnsupportedCode) {
		t.Fatal("missing code should fail", err)
	}
}
