package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

const (
	exportExt = ".ndjson.gz"
	digestExt = ".sha3"
)

// FilesystemExporter writes exports as files on disk.
// Each export is {dir}/{name}.ndjson.gz plus a {name}.ndjson.gz.sha3 sidecar.
type FilesystemExporter struct {
	dir string
	log *slog.Logger
}

// NewFilesystemExporter creates the export directory if needed.
func NewFilesystemExporter(dir string, log *slog.Logger) (*FilesystemExporter, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	return &FilesystemExporter{dir: dir, log: log}, nil
}

func (x *FilesystemExporter) path(name string) string {
	return filepath.Join(x.dir, name+exportExt)
}

// Export writes entries under name, replacing any export with that name.
func (x *FilesystemExporter) Export(ctx context.Context, name string, entries []logstore.Entry) (*Result, error) {
	compressed, rawSize, err := encode(entries)
	if err != nil {
		return nil, err
	}
	digest := Digest(compressed)

	path := x.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename export: %w", err)
	}

	sidecar := fmt.Sprintf("%s  %s\n", digest, filepath.Base(path))
	if err := os.WriteFile(path+digestExt, []byte(sidecar), 0644); err != nil {
		x.log.Warn("failed to write export digest", "name", name, "error", err)
	}

	x.log.Debug("exported log entries", "name", name, "entries", len(entries),
		"raw_size", rawSize, "compressed_size", len(compressed))

	return &Result{
		Name:            name,
		Location:        path,
		Entries:         len(entries),
		RawBytes:        rawSize,
		CompressedBytes: int64(len(compressed)),
		Digest:          digest,
	}, nil
}

// Load reads an export back, checking it against its digest sidecar when one
// exists.
func (x *FilesystemExporter) Load(ctx context.Context, name string) ([]logstore.Entry, error) {
	path := x.path(name)
	compressed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read export: %w", err)
	}

	if sidecar, err := os.ReadFile(path + digestExt); err == nil {
		want, _, _ := strings.Cut(strings.TrimSpace(string(sidecar)), " ")
		if got := Digest(compressed); got != want {
			return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, name)
		}
	}

	return decode(compressed)
}

// List returns the names of all exports in the directory, sorted.
func (x *FilesystemExporter) List() ([]string, error) {
	files, err := os.ReadDir(x.dir)
	if err != nil {
		return nil, fmt.Errorf("read export directory: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), exportExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(f.Name(), exportExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes an export and its sidecar.
func (x *FilesystemExporter) Delete(name string) error {
	path := x.path(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("remove export: %w", err)
	}
	if err := os.Remove(path + digestExt); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove export digest: %w", err)
	}
	return nil
}
