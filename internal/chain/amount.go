package chain

import (
	"math/big"
	"strings"
)

var weiPerCelo = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatWei renders a wei amount as a decimal CELO string with trailing
// zeros trimmed, e.g. 1500000000000000000 -> "1.5".
func FormatWei(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}
	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)

	quo, rem := new(big.Int).QuoRem(abs, weiPerCelo, new(big.Int))
	out := quo.String()
	if rem.Sign() != 0 {
		frac := rem.String()
		for len(frac) < 18 {
			frac = "0" + frac
		}
		frac = strings.TrimRight(frac, "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
