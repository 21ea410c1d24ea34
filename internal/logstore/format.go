package logstore

import "fmt"

// Log writes message at severity. See Write.
func (s *Store) Log(severity Severity, message string) {
	e := NewEntry(message)
	e.Severity = severity
	s.Write(e)
}

// Logf formats according to a format specifier and writes the result at
// severity. Filtered entries are dropped before formatting.
func (s *Store) Logf(severity Severity, format string, args ...any) {
	if !severity.AtLeast(s.FilterSeverity()) {
		return
	}
	s.Log(severity, fmt.Sprintf(format, args...))
}
