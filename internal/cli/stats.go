package cli

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

// StoreStats summarizes a store.
type StoreStats struct {
	Path      string
	FileBytes int64
	Entries   int64
	Newest    time.Time
}

// Stats prints the store's size, entry count and settings.
func Stats(s *Session) (*StoreStats, error) {
	count, err := s.Store.Count()
	if err != nil {
		return nil, err
	}

	st := &StoreStats{Path: s.Store.Path(), Entries: count}
	for _, suffix := range []string{"", "-wal"} {
		if info, err := os.Stat(st.Path + suffix); err == nil {
			st.FileBytes += info.Size()
		}
	}

	recent, err := s.Store.QueryRecent(1, logstore.SeverityAll)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 {
		st.Newest = recent[0].Timestamp
	}

	s.Term.PrintKeyValue("path", st.Path)
	s.Term.PrintKeyValue("size", humanize.Bytes(uint64(st.FileBytes)))
	s.Term.PrintKeyValue("entries", humanize.Comma(st.Entries))
	if !st.Newest.IsZero() {
		s.Term.PrintKeyValue("newest", humanize.Time(st.Newest))
	}
	s.Term.PrintKeyValue("filter", s.Store.FilterSeverity())
	s.Term.PrintKeyValue("retention", humanize.Ftoa(s.Store.PruneLimitDays())+" days")
	s.Term.PrintKeyValue("prune every", (time.Duration(s.Store.PruneFrequencySecs()) * time.Second).String())
	return st, nil
}
