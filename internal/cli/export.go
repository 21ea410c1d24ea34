package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ehrlich-b/logkeep/internal/archive"
	"github.com/ehrlich-b/logkeep/internal/logstore"
)

// ExportOptions configures the export command.
type ExportOptions struct {
	Since    time.Duration
	Severity logstore.Severity
	Dir      string // overrides archive.dir
	R2       bool
	Name     string // default archive.NewName(now)
}

// Export writes matching entries, oldest first, to the configured archive.
func Export(ctx context.Context, s *Session, opts ExportOptions) (*archive.Result, error) {
	exporter, err := s.exporter(opts)
	if err != nil {
		return nil, err
	}

	var start time.Time
	if opts.Since > 0 {
		start = time.Now().Add(-opts.Since)
	}
	entries, err := s.Store.QueryRange(start, time.Time{}, opts.Severity)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = archive.NewName(time.Now())
	}

	res, err := exporter.Export(ctx, name, entries)
	if err != nil {
		return nil, err
	}

	s.Term.PrintSuccess("Exported %s %s", humanize.Comma(int64(res.Entries)), entriesWord(int64(res.Entries)))
	s.Term.PrintKeyValue("location", res.Location)
	s.Term.PrintKeyValue("size", humanize.Bytes(uint64(res.CompressedBytes))+" ("+humanize.Bytes(uint64(res.RawBytes))+" raw)")
	s.Term.PrintKeyValue("sha3", res.Digest)
	return res, nil
}

func (s *Session) exporter(opts ExportOptions) (archive.Exporter, error) {
	if opts.R2 {
		if s.Config.Archive.R2 == nil {
			return nil, errors.New("archive.r2 is not configured")
		}
		return archive.NewR2Exporter(s.Config.R2Config(), s.log)
	}
	return s.filesystemExporter(opts.Dir)
}

func (s *Session) filesystemExporter(dir string) (*archive.FilesystemExporter, error) {
	if dir == "" {
		dir = s.Config.Archive.Dir
	}
	return archive.NewFilesystemExporter(dir, s.log)
}

// ListExports prints the exports in dir, or archive.dir when dir is empty.
func ListExports(s *Session, dir string) ([]string, error) {
	x, err := s.filesystemExporter(dir)
	if err != nil {
		return nil, err
	}
	names, err := x.List()
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		s.Term.PrintKeyValue("exports", "none")
	}
	for _, name := range names {
		s.Term.PrintKeyValue("export", name)
	}
	return names, nil
}

// ShowExport loads an export, verifying its digest, and prints its entries.
func ShowExport(ctx context.Context, s *Session, name string, opts ExportOptions) ([]logstore.Entry, error) {
	exporter, err := s.exporter(opts)
	if err != nil {
		return nil, err
	}
	entries, err := exporter.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	s.Term.PrintEntries(entries)
	return entries, nil
}

// DeleteExport removes an export from dir, or archive.dir when dir is empty.
func DeleteExport(s *Session, dir, name string) error {
	x, err := s.filesystemExporter(dir)
	if err != nil {
		return err
	}
	if err := x.Delete(name); err != nil {
		return err
	}
	s.Term.PrintSuccess("Deleted export %s", name)
	return nil
}
