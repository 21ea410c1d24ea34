package cli

import (
	"errors"
	"time"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

// QueryOptions configures the query command. Since, when set, wins over Start.
type QueryOptions struct {
	Since    time.Duration
	Start    time.Time
	End      time.Time
	Severity logstore.Severity
}

// Query prints entries in a time range, oldest first.
func Query(s *Session, opts QueryOptions) ([]logstore.Entry, error) {
	start := opts.Start
	if opts.Since > 0 {
		start = time.Now().Add(-opts.Since)
	}
	if !opts.End.IsZero() && opts.End.Before(start) {
		return nil, errors.New("end is before start")
	}

	entries, err := s.Store.QueryRange(start, opts.End, opts.Severity)
	if err != nil {
		return nil, err
	}
	s.Term.PrintEntries(entries)
	return entries, nil
}

// Recent prints the newest n entries, newest first.
func Recent(s *Session, n int, severity logstore.Severity) ([]logstore.Entry, error) {
	if n <= 0 {
		return nil, errors.New("count must be positive")
	}
	entries, err := s.Store.QueryRecent(n, severity)
	if err != nil {
		return nil, err
	}
	s.Term.PrintEntries(entries)
	return entries, nil
}
