package logstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Severity ranks the urgency of an entry. Lower is more severe.
type Severity int

const (
	SeverityEmergency Severity = 0
	SeverityAlert     Severity = 1
	SeverityCritical  Severity = 2
	SeverityError     Severity = 3
	SeverityWarning   Severity = 4
	SeverityNotice    Severity = 5
	SeverityInfo      Severity = 6
	SeverityDebug     Severity = 7
)

// SeverityAll is the least restrictive query filter.
const SeverityAll = SeverityDebug

var severityNames = [...]string{
	"emergency",
	"alert",
	"critical",
	"error",
	"warning",
	"notice",
	"info",
	"debug",
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// Valid reports whether s is on the 0..7 scale.
func (s Severity) Valid() bool {
	return s >= SeverityEmergency && s <= SeverityDebug
}

// AtLeast reports whether s is at least as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s <= threshold
}

// ParseSeverity accepts a severity name (case-insensitive, "warn" and "err"
// allowed) or its ordinal.
func ParseSeverity(v string) (Severity, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if n, err := strconv.Atoi(v); err == nil {
		s := Severity(n)
		if !s.Valid() {
			return 0, fmt.Errorf("severity %d out of range 0..7", n)
		}
		return s, nil
	}
	switch v {
	case "warn":
		return SeverityWarning, nil
	case "err":
		return SeverityError, nil
	case "crit":
		return SeverityCritical, nil
	case "emerg":
		return SeverityEmergency, nil
	}
	for i, name := range severityNames {
		if name == v {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", v)
}

// Entry is one log record. Metadata is opaque to the store; nil means none.
type Entry struct {
	Timestamp time.Time
	Severity  Severity
	Message   string
	Metadata  []byte
}

// NewEntry returns a Notice entry stamped with the current time.
// A bare Entry literal has severity 0 (Emergency), so prefer NewEntry.
func NewEntry(message string) Entry {
	return Entry{
		Timestamp: time.Now(),
		Severity:  SeverityNotice,
		Message:   message,
	}
}

// withDefaults fills a zero timestamp.
func (e Entry) withDefaults(now time.Time) Entry {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}

// toSeconds converts t to floating seconds since the Unix epoch.
func toSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// fromSeconds is the inverse of toSeconds, at microsecond resolution.
func fromSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	usec := math.Round(frac * 1e6)
	return time.Unix(int64(sec), int64(usec)*int64(time.Microsecond))
}
