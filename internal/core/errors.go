package core

import "errors"

var (
	// ErrProviderUnavailable means the provider stack itself is broken (not merely slow).
	ErrProviderUnavailable = errors.New("music provider unavailable")
	// ErrPipelineFault wraps an unexpected failure escaping the recommendation pipeline.
	ErrPipelineFault = errors.New("recommendation pipeline fault")

	ErrTrackNotFound = errors.New("track not found")
	ErrInvalidIndex  = errors.New("invalid queue index")
	ErrInvalidSeed   = errors.New("invalid seed")
)
