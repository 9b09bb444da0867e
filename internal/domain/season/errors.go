package season

import "errors"

// Sentinel kinds for season configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid season config")
)
