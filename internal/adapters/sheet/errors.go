package sheet

import "errors"

// Sentinel errors for sheet sources.
var (
	ErrFetch      = errors.New("sheet fetch failed")
	ErrStatus     = errors.New("unexpected sheet response status")
	ErrParse      = errors.New("sheet parse failed")
	ErrNoHeader   = errors.New("sheet has no header row")
	ErrTooLarge   = errors.New("sheet exceeds size limit")
	ErrNoLocation = errors.New("sheet source has no location")
)
