package app

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrSeasonInactive = errors.New("season not accepting updates")
	ErrCooldownActive = errors.New("update cooldown active")
	ErrUnauthorized   = errors.New("unauthorized")
)
