package config

import "errors"

// Sentinel kinds for configuration loading. Callers match with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrLoadConfig    = errors.New("configuration load failed")
)
