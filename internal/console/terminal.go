// Package console renders log entries for people: the store's echo channel
// and the CLI's output.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
)

const timeLayout = "2006-01-02 15:04:05.000"

// MetadataFormatter renders an entry's metadata blob for display.
type MetadataFormatter func(data []byte) string

// Terminal writes entries to out, with ANSI colors when out is a terminal.
// It is safe for concurrent use.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	tty   bool
	width int
	meta  MetadataFormatter
	now   func() time.Time
}

// NewTerminal creates a terminal output helper, detecting whether out is a TTY.
func NewTerminal(out io.Writer) *Terminal {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return NewTerminalWithTTY(out, tty)
}

// NewTerminalWithTTY creates a terminal output helper with explicit TTY mode.
func NewTerminalWithTTY(out io.Writer, tty bool) *Terminal {
	width := 80
	if tty {
		if f, ok := out.(*os.File); ok {
			if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
				width = w
			}
		}
	}
	return &Terminal{
		out:   out,
		tty:   tty,
		width: width,
		now:   time.Now,
	}
}

// SetMetadataFormatter sets how metadata blobs are shown. Without one,
// metadata is shown as its size.
func (t *Terminal) SetMetadataFormatter(f MetadataFormatter) {
	t.mu.Lock()
	t.meta = f
	t.mu.Unlock()
}

// Echo prints an entry as it is written.
func (t *Terminal) Echo(e logstore.Entry) {
	t.PrintEntry(e)
}

// PrintEntry prints one entry on one line.
func (t *Terminal) PrintEntry(e logstore.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printEntry(e)
}

// PrintEntries prints entries followed by a count footer.
func (t *Terminal) PrintEntries(entries []logstore.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range entries {
		t.printEntry(e)
	}
	if len(entries) == 0 {
		fmt.Fprintf(t.out, "%s(no entries)%s\n", t.c(colorDim), t.c(colorReset))
		return
	}
	t.printLine("─")
	fmt.Fprintf(t.out, "%s%d %s%s", t.c(colorDim), len(entries), plural(len(entries), "entry", "entries"), t.c(colorReset))
	oldest, newest := span(entries)
	fmt.Fprintf(t.out, "%s, %s to %s%s\n", t.c(colorDim),
		humanize.RelTime(oldest, t.now(), "ago", "from now"),
		humanize.RelTime(newest, t.now(), "ago", "from now"),
		t.c(colorReset))
}

func (t *Terminal) printEntry(e logstore.Entry) {
	label := fmt.Sprintf("%-9s", strings.ToUpper(e.Severity.String()))
	fmt.Fprintf(t.out, "%s%s%s %s%s%s %s",
		t.c(colorDim), e.Timestamp.Local().Format(timeLayout), t.c(colorReset),
		t.c(severityColor(e.Severity)), label, t.c(colorReset),
		e.Message)
	if len(e.Metadata) > 0 {
		fmt.Fprintf(t.out, " %s[%s]%s", t.c(colorCyan), t.formatMetadata(e.Metadata), t.c(colorReset))
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) formatMetadata(data []byte) string {
	if t.meta != nil {
		return t.meta(data)
	}
	return humanize.Bytes(uint64(len(data)))
}

// PrintSuccess prints a one-line success message.
func (t *Terminal) PrintSuccess(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s%s✓%s %s\n", t.c(colorBold), t.c(colorGreen), t.c(colorReset), fmt.Sprintf(format, args...))
}

// PrintKeyValue prints an aligned "key: value" line.
func (t *Terminal) PrintKeyValue(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "  %s%-12s%s %v\n", t.c(colorDim), key+":", t.c(colorReset), value)
}

// printLine prints a horizontal line of the given character.
func (t *Terminal) printLine(char string) {
	fmt.Fprintln(t.out, t.c(colorDim)+strings.Repeat(char, t.width)+t.c(colorReset))
}

// c returns code in TTY mode and nothing otherwise.
func (t *Terminal) c(code string) string {
	if !t.tty {
		return ""
	}
	return code
}

func severityColor(s logstore.Severity) string {
	switch {
	case s <= logstore.SeverityCritical:
		return colorBold + colorMagenta
	case s == logstore.SeverityError:
		return colorRed
	case s == logstore.SeverityWarning:
		return colorYellow
	case s == logstore.SeverityNotice:
		return colorBlue
	case s == logstore.SeverityInfo:
		return colorGreen
	default:
		return colorDim
	}
}

func span(entries []logstore.Entry) (oldest, newest time.Time) {
	oldest, newest = entries[0].Timestamp, entries[0].Timestamp
	for _, e := range entries[1:] {
		if e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
		if e.Timestamp.After(newest) {
			newest = e.Timestamp
		}
	}
	return oldest, newest
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
