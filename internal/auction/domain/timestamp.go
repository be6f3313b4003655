package domain

import (
	"strconv"
	"strings"
	"time"
)

// TimestampStatus tells an absent value apart from one that failed to parse.
type TimestampStatus int

const (
	TimestampAbsent TimestampStatus = iota
	TimestampParsed
	TimestampUnparsed
)

func (s TimestampStatus) String() string {
	switch s {
	case TimestampParsed:
		return "parsed"
	case TimestampUnparsed:
		return "unparsed"
	default:
		return "absent"
	}
}

// Tried in order, most precise first. Fractional seconds are accepted after
// the seconds field even though the layout does not spell them out.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts an ISO-8601-like value: a YYYY-MM-DD date, optionally
// followed by 'T' or a space and HH:MM[:SS], optionally ending in 'Z' or a
// numeric offset (+HH, +HHMM, +HH:MM). Values without a zone are UTC.
// The result is always in UTC; the zero time is returned unless status is TimestampParsed.
func ParseTimestamp(raw string) (time.Time, TimestampStatus) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, TimestampAbsent
	}

	if len(s) > 10 && (s[10] == 'T' || s[10] == 't') {
		s = s[:10] + " " + s[11:]
	}

	loc := time.UTC
	if last := s[len(s)-1]; last == 'Z' || last == 'z' {
		s = strings.TrimSpace(s[:len(s)-1])
	} else if space := strings.IndexByte(s, ' '); space >= 0 {
		if i := strings.IndexAny(s[space+1:], "+-"); i >= 0 {
			offsetStart := space + 1 + i
			offset, ok := parseOffset(s[offsetStart:])
			if !ok {
				return time.Time{}, TimestampUnparsed
			}
			loc = time.FixedZone("", offset)
			s = strings.TrimSpace(s[:offsetStart])
		}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), TimestampParsed
		}
	}
	return time.Time{}, TimestampUnparsed
}

// parseOffset turns "+02:00", "-0530" or "+03" into seconds east of UTC.
func parseOffset(v string) (int, bool) {
	if len(v) < 3 {
		return 0, false
	}
	sign := 1
	if v[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(v[1:], ":", "")

	var hh, mm string
	switch len(body) {
	case 2:
		hh, mm = body, "00"
	case 4:
		hh, mm = body[:2], body[2:]
	default:
		return 0, false
	}

	hours, err := strconv.Atoi(hh)
	if err != nil || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes > 59 {
		return 0, false
	}
	return sign * (hours*3600 + minutes*60), true
}
