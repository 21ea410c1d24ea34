package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ehrlich-b/logkeep/internal/archive"
	"github.com/ehrlich-b/logkeep/internal/config"
	"github.com/ehrlich-b/logkeep/internal/logstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	days := 36500.0
	freq := config.Duration(time.Hour)
	return &config.Config{
		Path:   filepath.Join(dir, "log.db"),
		Filter: "warning",
		Prune:  config.Prune{LimitDays: &days, Frequency: &freq},
		Archive: config.Archive{
			Dir: filepath.Join(dir, "exports"),
		},
	}
}

func openTestSession(t *testing.T, cfg *config.Config) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s, err := OpenSession(cfg, &out, nil)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	return s, &out
}

func writeEntries(t *testing.T, cfg *config.Config, entries ...WriteOptions) {
	t.Helper()
	s, _ := openTestSession(t, cfg)
	for _, opts := range entries {
		if _, err := Write(s, opts); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestWriteAndRecent(t *testing.T) {
	cfg := testConfig(t)
	writeEntries(t, cfg,
		WriteOptions{Severity: logstore.SeverityError, Message: "disk full", Meta: []string{"disk=sda1", "pct=99"}},
		WriteOptions{Severity: logstore.SeverityDebug, Message: "noise"},
	)

	s, out := openTestSession(t, cfg)
	defer s.Close()

	entries, err := Recent(s, 10, logstore.SeverityAll)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != "disk full" {
		t.Errorf("got %q, want %q", entries[0].Message, "disk full")
	}
	if !strings.Contains(out.String(), "[disk=sda1 pct=99]") {
		t.Errorf("expected decoded metadata in output, got %q", out.String())
	}
	if !strings.Contains(out.String(), "1 entry") {
		t.Errorf("expected footer, got %q", out.String())
	}
}

func TestWriteBelowFilter(t *testing.T) {
	cfg := testConfig(t)
	s, out := openTestSession(t, cfg)
	defer s.Close()

	ok, err := Write(s, WriteOptions{Severity: logstore.SeverityInfo, Message: "fyi"})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if ok {
		t.Error("expected entry below filter to be dropped")
	}
	if !strings.Contains(out.String(), "below the warning filter") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestWriteValidation(t *testing.T) {
	cfg := testConfig(t)
	s, _ := openTestSession(t, cfg)
	defer s.Close()

	if _, err := Write(s, WriteOptions{Severity: logstore.SeverityError, Message: "  "}); err == nil {
		t.Error("expected error for empty message")
	}
	if _, err := Write(s, WriteOptions{Severity: logstore.SeverityError, Message: "x", Meta: []string{"novalue"}}); err == nil {
		t.Error("expected error for bad metadata pair")
	}
}

func TestSealedMetadata(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metadata.Secret = "hunter2"
	writeEntries(t, cfg, WriteOptions{Severity: logstore.SeverityError, Message: "boom", Meta: []string{"user=alice"}})

	s, out := openTestSession(t, cfg)
	defer s.Close()
	entries, err := Recent(s, 1, logstore.SeverityAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if bytes.Contains(entries[0].Metadata, []byte("alice")) {
		t.Error("metadata stored in plaintext")
	}
	if !strings.Contains(out.String(), "user=alice") {
		t.Errorf("expected decrypted metadata in output, got %q", out.String())
	}
}

func TestQuery(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now()
	writeEntries(t, cfg,
		WriteOptions{Severity: logstore.SeverityError, Message: "old", Time: now.Add(-3 * time.Hour)},
		WriteOptions{Severity: logstore.SeverityWarning, Message: "new", Time: now.Add(-time.Minute)},
		WriteOptions{Severity: logstore.SeverityCritical, Message: "newer", Time: now.Add(-time.Second)},
	)

	s, _ := openTestSession(t, cfg)
	defer s.Close()

	entries, err := Query(s, QueryOptions{Since: time.Hour, Severity: logstore.SeverityAll})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "new" || entries[1].Message != "newer" {
		t.Errorf("unexpected entries %+v", entries)
	}

	entries, err = Query(s, QueryOptions{Severity: logstore.SeverityError})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "old" {
		t.Errorf("unexpected entries %+v", entries)
	}

	if _, err := Query(s, QueryOptions{Start: now, End: now.Add(-time.Hour)}); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := Recent(s, 0, logstore.SeverityAll); err == nil {
		t.Error("expected error for zero count")
	}
}

func TestPrune(t *testing.T) {
	cfg := testConfig(t)
	days := 1.0
	cfg.Prune.LimitDays = &days
	now := time.Now()
	writeEntries(t, cfg,
		WriteOptions{Severity: logstore.SeverityError, Message: "ancient", Time: now.Add(-72 * time.Hour)},
		WriteOptions{Severity: logstore.SeverityError, Message: "fresh", Time: now},
	)

	s, out := openTestSession(t, cfg)
	defer s.Close()

	if _, err := Prune(s); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	n, err := s.Store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d entries after prune, want 1", n)
	}
	if !strings.Contains(out.String(), "Pruned") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestStats(t *testing.T) {
	cfg := testConfig(t)
	writeEntries(t, cfg,
		WriteOptions{Severity: logstore.SeverityError, Message: "one"},
		WriteOptions{Severity: logstore.SeverityError, Message: "two"},
	)

	s, out := openTestSession(t, cfg)
	defer s.Close()

	st, err := Stats(s)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Entries != 2 {
		t.Errorf("got %d entries, want 2", st.Entries)
	}
	if st.FileBytes == 0 {
		t.Error("expected non-zero file size")
	}
	if st.Newest.IsZero() {
		t.Error("expected newest timestamp")
	}
	if !strings.Contains(out.String(), "entries:") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestExport(t *testing.T) {
	cfg := testConfig(t)
	writeEntries(t, cfg,
		WriteOptions{Severity: logstore.SeverityError, Message: "one"},
		WriteOptions{Severity: logstore.SeverityWarning, Message: "two"},
	)

	s, _ := openTestSession(t, cfg)
	defer s.Close()

	res, err := Export(context.Background(), s, ExportOptions{Severity: logstore.SeverityAll, Name: "snapshot"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Entries != 2 {
		t.Errorf("got %d exported entries, want 2", res.Entries)
	}
	if res.Location != filepath.Join(cfg.Archive.Dir, "snapshot.ndjson.gz") {
		t.Errorf("unexpected location %q", res.Location)
	}
	if _, err := os.Stat(res.Location); err != nil {
		t.Errorf("export file missing: %v", err)
	}

	if _, err := Export(context.Background(), s, ExportOptions{R2: true}); err == nil {
		t.Error("expected error when r2 is not configured")
	}
}

func TestExportListShowDelete(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now()
	writeEntries(t, cfg,
		WriteOptions{Severity: logstore.SeverityError, Message: "one", Meta: []string{"k=v"}, Time: now.Add(-2 * time.Second)},
		WriteOptions{Severity: logstore.SeverityCritical, Message: "two", Time: now.Add(-time.Second)},
	)

	s, out := openTestSession(t, cfg)
	defer s.Close()
	ctx := context.Background()

	names, err := ListExports(s, "")
	if err != nil {
		t.Fatalf("ListExports failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("got %v, want no exports", names)
	}

	if _, err := Export(ctx, s, ExportOptions{Severity: logstore.SeverityAll, Name: "snap"}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	names, err = ListExports(s, "")
	if err != nil {
		t.Fatalf("ListExports failed: %v", err)
	}
	if len(names) != 1 || names[0] != "snap" {
		t.Errorf("got %v, want [snap]", names)
	}

	out.Reset()
	entries, err := ShowExport(ctx, s, "snap", ExportOptions{})
	if err != nil {
		t.Fatalf("ShowExport failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "one" || entries[1].Message != "two" {
		t.Errorf("unexpected entries %+v", entries)
	}
	if !strings.Contains(out.String(), "[k=v]") {
		t.Errorf("expected decoded metadata in output, got %q", out.String())
	}

	if err := DeleteExport(s, "", "snap"); err != nil {
		t.Fatalf("DeleteExport failed: %v", err)
	}
	if _, err := ShowExport(ctx, s, "snap", ExportOptions{}); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("ShowExport after delete: got %v, want ErrNotFound", err)
	}
	if err := DeleteExport(s, "", "snap"); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("second DeleteExport: got %v, want ErrNotFound", err)
	}
	if _, err := ShowExport(ctx, s, "snap", ExportOptions{R2: true}); err == nil {
		t.Error("expected error when r2 is not configured")
	}
}

func TestValidateConfig(t *testing.T) {
	t.Setenv("LOGKEEP_PATH", "")
	t.Setenv("LOGKEEP_FILTER", "")
	t.Setenv("LOGKEEP_METADATA_SECRET", "")
	t.Setenv("LOGKEEP_R2_BUCKET", "")

	dir := t.TempDir()
	content := "path: " + filepath.Join(dir, "log.db") + "\nfilter: error\n"
	if err := os.WriteFile(filepath.Join(dir, ".logkeep.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := ValidateConfig("", dir, &out); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
	if !strings.Contains(out.String(), ".logkeep.yaml is valid") {
		t.Errorf("unexpected output %q", out.String())
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("filter: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateConfig(bad, "", &out); err == nil {
		t.Error("expected error for invalid filter")
	}
}
