package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehrlich-b/logkeep/internal/logstore"
	"github.com/ehrlich-b/logkeep/internal/metacodec"
)

// WriteOptions configures the write command.
type WriteOptions struct {
	Severity logstore.Severity
	Message  string
	Meta     []string // key=value pairs
	Time     time.Time
}

// Write queues one entry. It reports whether the entry passed the filter;
// the entry reaches the file when the session is closed.
func Write(s *Session, opts WriteOptions) (bool, error) {
	if strings.TrimSpace(opts.Message) == "" {
		return false, fmt.Errorf("message is required")
	}

	meta, err := metacodec.FromPairs(opts.Meta)
	if err != nil {
		return false, err
	}
	data, err := s.Codec.Encode(meta)
	if err != nil {
		return false, fmt.Errorf("encode metadata: %w", err)
	}

	filter := s.Store.FilterSeverity()
	if !opts.Severity.AtLeast(filter) {
		s.Term.PrintKeyValue("dropped", fmt.Sprintf("%s is below the %s filter", opts.Severity, filter))
		return false, nil
	}

	s.Store.Write(logstore.Entry{
		Timestamp: opts.Time,
		Severity:  opts.Severity,
		Message:   opts.Message,
		Metadata:  data,
	})
	s.Term.PrintSuccess("Queued %s entry", opts.Severity)
	return true, nil
}
