package cli

import (
	"github.com/dustin/go-humanize"
)

// Prune runs a prune pass now and prints how many entries were deleted.
func Prune(s *Session) (int64, error) {
	n, err := s.Store.Prune()
	if err != nil {
		return 0, err
	}
	s.Term.PrintSuccess("Pruned %s %s older than %s days",
		humanize.Comma(n), entriesWord(n), humanize.Ftoa(s.Store.PruneLimitDays()))
	return n, nil
}

func entriesWord(n int64) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
