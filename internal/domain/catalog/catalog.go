// Package catalog holds the fixed, ordered list of fitness-test events.
package catalog

import (
	"fmt"
	"strings"
)

// NameColumn is the input column holding the athlete's name.
const NameColumn = "Athlete"

// EventKey identifies a catalog event.
type EventKey uint8

// Catalog event keys, in display order.
const (
	M100 EventKey = iota
	Min1
	M500
	K1
	Min4
	K2
	K5
	K6
	Min30
	K10
	Min60
	HM
	FM

	// Count is the number of catalog events.
	Count = int(FM) + 1
)

// Event is one catalog entry.
type Event struct {
	Key    EventKey
	Column string // input column name
	Title  string // display label
}

var keyNames = [Count]string{"m100", "min1", "m500", "k1", "min4", "k2", "k5", "k6", "min30", "k10", "min60", "hm", "fm"}

// String returns the short key used in diff maps and URLs.
func (k EventKey) String() string {
	if int(k) < Count {
		return keyNames[k]
	}
	return fmt.Sprintf("EventKey(%d)", k)
}

// Valid reports whether k is a catalog key.
func (k EventKey) Valid() bool { return int(k) < Count }

// MarshalText renders the short key.
func (k EventKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a short key.
func (k *EventKey) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey maps a short key such as "k2" to its EventKey. Matching is
// case-insensitive.
func ParseKey(s string) (EventKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range keyNames {
		if name == s {
			return EventKey(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// Catalog is an immutable ordered event list.
type Catalog struct {
	events []Event
}

// Default returns the 13-event reference catalog.
func Default() Catalog {
	return Catalog{events: []Event{
		{Key: M100, Column: "100m", Title: "100m"},
		{Key: Min1, Column: "1min", Title: "1:00"},
		{Key: M500, Column: "500m", Title: "500m"},
		{Key: K1, Column: "1km", Title: "1km"},
		{Key: Min4, Column: "4min", Title: "4:00"},
		{Key: K2, Column: "2km", Title: "2km"},
		{Key: K5, Column: "5km", Title: "5km"},
		{Key: K6, Column: "6k", Title: "6km"},
		{Key: Min30, Column: "30min", Title: "30:00"},
		{Key: K10, Column: "10km", Title: "10km"},
		{Key: Min60, Column: "60min", Title: "60:00"},
		{Key: HM, Column: "HM", Title: "HM"},
		{Key: FM, Column: "FM", Title: "FM"},
	}}
}

// Events returns a copy of the ordered events.
func (c Catalog) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of events.
func (c Catalog) Len() int { return len(c.events) }

// Event looks up an entry by key.
func (c Catalog) Event(k EventKey) (Event, bool) {
	for _, e := range c.events {
		if e.Key == k {
			return e, true
		}
	}
	return Event{}, false
}

// Columns returns the input column names in catalog order, name column first.
func (c Catalog) Columns() []string {
	cols := make([]string, 0, len(c.events)+1)
	cols = append(cols, NameColumn)
	for _, e := range c.events {
		cols = append(cols, e.Column)
	}
	return cols
}
