package catalog

import "errors"

// ErrUnknownEvent is returned for keys outside the catalog.
var ErrUnknownEvent = errors.New("unknown event")
