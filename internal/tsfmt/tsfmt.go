// Package tsfmt implements the microsecond-precision ISO-8601 timestamp
// codec used throughout the journal.
//
// Naive ISO-8601 parsers vary in how they handle fractional seconds (some
// expect exactly 3, 6 or 9 digits; some silently drop precision). The
// journal format instead treats the fractional part as a plain integer
// number of microseconds, so round-tripping a timestamp through JSON never
// loses or reinterprets precision.
package tsfmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"
const secondsLayout = "2006-01-02T15:04:05"

// Format renders t as "YYYY-MM-DDTHH:MM:SS.<microseconds>", with the
// microseconds zero-padded to six digits, matching the wire format read by
// this system's verifier and by original_source/gt.
func Format(t time.Time) string {
	micros := t.Nanosecond() / int(time.Microsecond)
	return fmt.Sprintf("%s.%06d", t.Format(secondsLayout), micros)
}

// Parse splits s on the first '.', parses the prefix at seconds resolution,
// and treats the suffix as an integer microsecond offset. A trailing 'Z' on
// the suffix is tolerated and stripped, matching original_source/gt.
func Parse(s string) (time.Time, error) {
	prefix, suffix, found := strings.Cut(s, ".")
	base, err := time.Parse(secondsLayout, prefix)
	if err != nil {
		return time.Time{}, fmt.Errorf("tsfmt: bad timestamp %q: %w", s, err)
	}
	if !found {
		return base, nil
	}
	suffix = strings.TrimSuffix(suffix, "Z")
	micros, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("tsfmt: bad microsecond suffix %q: %w", s, err)
	}
	return base.Add(time.Duration(micros) * time.Microsecond), nil
}

// DatePath renders the YYYY-MM-DD component used to name daily log files and
// journal files.
func DatePath(t time.Time) string {
	return t.Format(dateLayout)
}
