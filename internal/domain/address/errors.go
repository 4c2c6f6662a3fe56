package address

import "errors"

// Sentinel kinds for address parsing and derivation.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrMaxSeeds       = errors.New("too many derivation seeds")
	ErrMaxSeedLength  = errors.New("derivation seed too long")
	ErrOnCurve        = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump   = errors.New("no viable bump for seeds")
)
