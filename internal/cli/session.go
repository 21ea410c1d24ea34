// Package cli implements the logkeep subcommands on top of an open store.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ehrlich-b/logkeep/internal/config"
	"github.com/ehrlich-b/logkeep/internal/console"
	"github.com/ehrlich-b/logkeep/internal/logstore"
	"github.com/ehrlich-b/logkeep/internal/metacodec"
)

// Session is an open store plus what the commands need to print its entries.
type Session struct {
	Config *config.Config
	Store  *logstore.Store
	Codec  metacodec.Codec
	Term   *console.Terminal

	log *slog.Logger
}

// OpenSession opens the store described by cfg. Output goes to out; with
// cfg.Echo set, written entries are also echoed to stderr.
func OpenSession(cfg *config.Config, out io.Writer, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	codec, err := cfg.Codec()
	if err != nil {
		return nil, fmt.Errorf("metadata codec: %w", err)
	}
	format := metadataFormatter(codec)

	opts := append(cfg.StoreOptions(), logstore.WithLogger(log))
	if cfg.Echo {
		echo := console.NewTerminal(os.Stderr)
		echo.SetMetadataFormatter(format)
		opts = append(opts, logstore.WithEcho(echo))
	}

	store := logstore.New(cfg.Path, opts...)
	if err := store.Open(); err != nil {
		store.Close()
		return nil, fmt.Errorf("open log store: %w", err)
	}
	log.Debug("opened log store", "path", cfg.Path, "filter", store.FilterSeverity().String())

	term := console.NewTerminal(out)
	term.SetMetadataFormatter(format)

	return &Session{
		Config: cfg,
		Store:  store,
		Codec:  codec,
		Term:   term,
		log:    log,
	}, nil
}

// Close flushes queued writes and closes the store.
func (s *Session) Close() error {
	return s.Store.Close()
}

func metadataFormatter(codec metacodec.Codec) console.MetadataFormatter {
	return func(data []byte) string {
		meta, err := codec.Decode(data)
		if err != nil {
			return fmt.Sprintf("undecodable: %v", err)
		}
		return metacodec.Format(meta)
	}
}
