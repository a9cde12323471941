package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNoSnapshot   = errors.New("no snapshot published yet")
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrStale        = errors.New("snapshot is older than the published one")
)
