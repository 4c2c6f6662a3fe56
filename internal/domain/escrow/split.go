package escrow

import (
	"fmt"
	"math/bits"
)

// Deposit split in percent of the bid. Both shares round down, so up to 99
// units per deposit may stay with the depositor.
const (
	FeePercent   = 3
	VaultPercent = 97
	percentBase  = 100
)

// Split divides bid into the fee receiver's share and the vault's share.
func Split(bid uint64) (fee, vault uint64, err error) {
	if fee, err = percentOf(bid, FeePercent); err != nil {
		return 0, 0, err
	}
	if vault, err = percentOf(bid, VaultPercent); err != nil {
		return 0, 0, err
	}
	return fee, vault, nil
}

func percentOf(amount, percent uint64) (uint64, error) {
	hi, lo := bits.Mul64(amount, percent)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrArithmeticOverflow, amount, percent)
	}
	return lo / percentBase, nil
}
