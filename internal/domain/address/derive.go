package address

import (
	"crypto/sha256"
	"fmt"
)

// Derivation limits. The bump byte counts as one seed.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

var derivedMarker = []byte("ProgramDerivedAddress") //nolint:gochecknoglobals // constant byte marker

// CreateDerived computes the derived address for seeds and bump under programID.
// It fails with ErrOnCurve when the hash could be a real wallet key.
func CreateDerived(programID Address, seeds [][]byte, bump uint8) (Address, error) {
	if len(seeds)+1 > MaxSeeds {
		return Zero, fmt.Errorf("%w: %d", ErrMaxSeeds, len(seeds))
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLength, i, len(seed))
		}
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write(derivedMarker)

	var a Address
	copy(a[:], h.Sum(nil))
	if IsOnCurve(a) {
		return Zero, ErrOnCurve
	}
	return a, nil
}

// FindDerived searches bumps from 255 down and returns the first off-curve
// address with its bump. That bump is the canonical one for the seeds.
func FindDerived(programID Address, seeds ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		a, err := CreateDerived(programID, seeds, uint8(bump))
		if err == nil {
			return a, uint8(bump), nil
		}
		if err != ErrOnCurve { //nolint:errorlint // sentinel returned unwrapped above
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

// Deriver binds derivation to one program id.
type Deriver struct {
	programID Address
}

// NewDeriver returns a Deriver for programID.
func NewDeriver(programID Address) Deriver {
	return Deriver{programID: programID}
}

// ProgramID returns the bound program id.
func (d Deriver) ProgramID() Address {
	return d.programID
}

// Find returns the canonical derived address and bump for seeds.
func (d Deriver) Find(seeds ...[]byte) (Address, uint8, error) {
	return FindDerived(d.programID, seeds...)
}

// Create returns the derived address for seeds with an explicit bump.
func (d Deriver) Create(bump uint8, seeds ...[]byte) (Address, error) {
	return CreateDerived(d.programID, seeds, bump)
}
