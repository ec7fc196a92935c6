package tlb

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/broxus/nekoton-go/tvm/cell"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Coins is an amount of nano units with a number of decimals used for printing.
type Coins struct {
	decimals int
	val      *big.Int
}

const nativeDecimals = 9

var ZeroCoins = FromNanoTONU(0)

func (g Coins) String() string {
	if g.val == nil || g.val.Sign() == 0 {
		return "0"
	}

	abs := new(big.Int).Abs(g.val).String()
	if len(abs) <= g.decimals {
		abs = strings.Repeat("0", g.decimals-len(abs)+1) + abs
	}

	hi, lo := abs[:len(abs)-g.decimals], strings.TrimRight(abs[len(abs)-g.decimals:], "0")
	res := hi
	if lo != "" {
		res += "." + lo
	}
	if g.val.Sign() < 0 {
		res = "-" + res
	}
	return res
}

func (g Coins) Decimals() int {
	return g.decimals
}

// Nano returns the amount in minimal units.
func (g Coins) Nano() *big.Int {
	if g.val == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(g.val)
}

func (g Coins) Cmp(other Coins) int {
	return g.Nano().Cmp(other.Nano())
}

func MustFromTON(val string) Coins {
	v, err := FromTON(val)
	if err != nil {
		panic(err)
	}
	return v
}

func FromNanoTON(val *big.Int) Coins {
	return Coins{decimals: nativeDecimals, val: new(big.Int).Set(val)}
}

func FromNanoTONU(val uint64) Coins {
	return Coins{decimals: nativeDecimals, val: new(big.Int).SetUint64(val)}
}

func FromTON(val string) (Coins, error) {
	return FromDecimal(val, nativeDecimals)
}

// FromDecimal parses an amount like "1.25", digits after decimals are cut.
func FromDecimal(val string, decimals int) (Coins, error) {
	if decimals < 0 || decimals >= 128 {
		return Coins{}, fmt.Errorf("%w: bad decimals %d", ErrInvalidAmount, decimals)
	}

	hi, lo, _ := strings.Cut(val, ".")
	if hi == "" || strings.ContainsAny(hi, "+-") || strings.Contains(lo, ".") {
		return Coins{}, fmt.Errorf("%w: %q", ErrInvalidAmount, val)
	}

	if len(lo) > decimals {
		lo = lo[:decimals]
	}
	digits := hi + lo + strings.Repeat("0", decimals-len(lo))

	n, ok := new(big.Int).SetString(digits, 10)
	if !ok || n.Sign() < 0 {
		return Coins{}, fmt.Errorf("%w: %q", ErrInvalidAmount, val)
	}
	if n.BitLen() > 120 {
		return Coins{}, fmt.Errorf("%w: %q does not fit into 15 bytes", ErrInvalidAmount, val)
	}
	return Coins{decimals: decimals, val: n}, nil
}

func (g *Coins) LoadFromCell(loader *cell.Slice) error {
	coins, err := loader.LoadBigCoins()
	if err != nil {
		return err
	}
	g.decimals = nativeDecimals
	g.val = coins
	return nil
}

func (g Coins) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", g.Nano().String())), nil
}

func (g *Coins) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	*g = FromNanoTON(n)
	return nil
}
