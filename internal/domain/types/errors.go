package types

import "errors"

// Sentinel kinds shared by the ranking packages. These allow errors.Is/As
// from callers without importing implementation packages.
var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrNotFound         = errors.New("entity not found")
	ErrNotAdmitted      = errors.New("score not admitted")
	ErrEmptyInput       = errors.New("empty input")
	ErrLengthMismatch   = errors.New("input length mismatch")
)
