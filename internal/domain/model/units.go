package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportDecimals is the number of decimal places between the smallest unit and one SOL.
const LamportDecimals = 9

// ToSOL converts smallest units to a whole-currency decimal.
func ToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -LamportDecimals)
}

// FormatSOL renders lamports as a SOL amount, e.g. 1500000000 -> "1.5".
func FormatSOL(lamports uint64) string {
	return ToSOL(lamports).String()
}
