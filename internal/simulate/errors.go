package simulate

import "errors"

// Sentinel kinds for scenario errors.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrExpectations    = errors.New("scenario expectations not met")
)
