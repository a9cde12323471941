// Package pace converts between erg pace strings, seconds and power.
//
// Pace is expressed per ReferenceDistance metres. Power follows the cube
// law used by ergometers: power = ReferenceEnergy / (seconds/ReferenceDistance)^3.
package pace

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/okian/pbspread/internal/domain/model"
)

// Cube-law constants.
const (
	ReferenceEnergy   = 2.8
	ReferenceDistance = 500.0
)

// zeroText is what FormatSeconds returns for a zero or unusable duration.
const zeroText = "0:00.0"

// formatEpsilon absorbs float error in seconds*10 so that a value parsed
// from "m:ss.t" truncates back to the same tenth.
const formatEpsilon = 1e-6

var (
	parenthesized = regexp.MustCompile(`\(([^)]+)\)`)
	leadingInt    = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat  = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
)

// ParsePace parses a cell such as "1:45.3" or "5000m (18:30.2)" into a
// personal best. It returns nil for an empty cell, or when the cell has an
// opening parenthesis but no "(...)" group.
//
// Malformed numbers are not repaired: they produce NaN seconds and power.
func ParsePace(raw string) *model.PersonalBest {
	if raw == "" {
		return nil
	}
	text := raw
	if strings.Contains(raw, "(") {
		m := parenthesized.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		text = m[1]
	}

	seconds := parseSeconds(text)
	return &model.PersonalBest{
		PaceText:    text,
		PaceSeconds: seconds,
		Power:       PowerFromSeconds(seconds),
	}
}

// parseSeconds splits "MM:SS[.f]" on ':' and returns minutes*60 + seconds.
// Each part is read as the longest numeric prefix; a part without one is NaN.
func parseSeconds(text string) float64 {
	parts := strings.Split(text, ":")
	minutes := parsePrefix(leadingInt, parts[0])
	secs := math.NaN()
	if len(parts) > 1 {
		secs = parsePrefix(leadingFloat, parts[1])
	}
	return minutes*60 + secs
}

func parsePrefix(re *regexp.Regexp, s string) float64 {
	m := re.FindString(strings.TrimLeftFunc(s, isLeadingSpace))
	if m == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// isLeadingSpace matches Unicode white space and the byte order mark, which
// sheet exports sometimes leave in front of numbers.
func isLeadingSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

// PowerFromSeconds converts a pace in seconds per ReferenceDistance to power.
func PowerFromSeconds(seconds float64) float64 {
	return ReferenceEnergy / math.Pow(seconds/ReferenceDistance, 3)
}

// SecondsFromPower is the inverse of PowerFromSeconds.
func SecondsFromPower(power float64) float64 {
	return math.Cbrt(ReferenceEnergy/power) * ReferenceDistance
}

// FormatSeconds renders a duration as [H:][MM:]SS.t.
//
// Units are truncated, never rounded: the value is reduced to whole tenths
// and split by integer division. Hours and minutes appear only when
// non-zero; minutes are zero-padded only after hours, seconds only after a
// higher unit. Zero, negative and non-finite input render as "0:00.0".
func FormatSeconds(seconds float64) string {
	total := seconds * 10
	if !(total > 0) || math.IsInf(total, 1) {
		return zeroText
	}

	// Durations past the int64 range are clamped rather than wrapped.
	tenths := int64(math.MaxInt64)
	if f := math.Floor(total + formatEpsilon); f < math.MaxInt64 {
		tenths = int64(f)
	}
	hours := tenths / 36000
	mins := tenths / 600
	secs := tenths / 10

	tenths -= secs * 10
	secs -= mins * 60
	mins -= hours * 60

	var b strings.Builder
	if hours > 0 {
		b.WriteString(strconv.FormatInt(hours, 10))
		b.WriteByte(':')
	}
	if mins > 0 {
		if hours > 0 && mins < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(mins, 10))
		b.WriteByte(':')
	}
	switch {
	case secs == 0:
		b.WriteString("00")
	case secs < 10 && (mins > 0 || hours > 0):
		b.WriteByte('0')
		b.WriteString(strconv.FormatInt(secs, 10))
	default:
		b.WriteString(strconv.FormatInt(secs, 10))
	}
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(tenths, 10))
	return b.String()
}
