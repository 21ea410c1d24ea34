package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

func testEntries() []logstore.Entry {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []logstore.Entry{
		{Timestamp: base, Severity: logstore.SeverityError, Message: "disk full"},
		{Timestamp: base.Add(time.Second), Severity: logstore.SeverityWarning, Message: "retrying", Metadata: []byte{1, 2, 3}},
		{Timestamp: base.Add(2 * time.Second), Severity: logstore.SeverityCritical, Message: "line\nbreak"},
	}
}

func assertEntries(t *testing.T, got, want []logstore.Entry) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("entry %d: timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		if got[i].Severity != want[i].Severity {
			t.Errorf("entry %d: severity = %v, want %v", i, got[i].Severity, want[i].Severity)
		}
		if got[i].Message != want[i].Message {
			t.Errorf("entry %d: message = %q, want %q", i, got[i].Message, want[i].Message)
		}
		if !bytes.Equal(got[i].Metadata, want[i].Metadata) {
			t.Errorf("entry %d: metadata = %v, want %v", i, got[i].Metadata, want[i].Metadata)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	entries := testEntries()
	compressed, rawSize, err := encode(entries)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if rawSize == 0 || len(compressed) == 0 {
		t.Fatalf("expected output, got raw=%d compressed=%d", rawSize, len(compressed))
	}

	got, err := decode(compressed)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	assertEntries(t, got, entries)
}

func TestEncodeEmpty(t *testing.T) {
	compressed, rawSize, err := encode(nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if rawSize != 0 {
		t.Errorf("rawSize = %d, want 0", rawSize)
	}
	got, err := decode(compressed)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want 0", len(got))
	}
}

func TestNewName(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	a := NewName(ts)
	b := NewName(ts)
	if !strings.HasPrefix(a, "logkeep-20240301T123045Z-") {
		t.Errorf("unexpected name %q", a)
	}
	if a == b {
		t.Errorf("expected unique names, got %q twice", a)
	}
}

func TestDigest(t *testing.T) {
	d := Digest([]byte("hello"))
	if len(d) != 64 {
		t.Errorf("digest length = %d, want 64", len(d))
	}
	if d == Digest([]byte("hellp")) {
		t.Error("different input produced same digest")
	}
}

func TestFilesystemExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	x, err := NewFilesystemExporter(dir, nil)
	if err != nil {
		t.Fatalf("NewFilesystemExporter failed: %v", err)
	}
	ctx := context.Background()

	entries := testEntries()
	res, err := x.Export(ctx, "batch", entries)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Entries != len(entries) {
		t.Errorf("Entries = %d, want %d", res.Entries, len(entries))
	}
	if res.Location != filepath.Join(dir, "batch.ndjson.gz") {
		t.Errorf("Location = %q", res.Location)
	}
	if _, err := os.Stat(res.Location + ".sha3"); err != nil {
		t.Errorf("expected digest sidecar: %v", err)
	}

	got, err := x.Load(ctx, "batch")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEntries(t, got, entries)

	names, err := x.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != "batch" {
		t.Errorf("List = %v, want [batch]", names)
	}

	if err := x.Delete("batch"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := x.Load(ctx, "batch"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete: got %v, want ErrNotFound", err)
	}
	if err := x.Delete("batch"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestFilesystemExporterDigestMismatch(t *testing.T) {
	x, err := NewFilesystemExporter(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	res, err := x.Export(ctx, "batch", testEntries())
	if err != nil {
		t.Fatal(err)
	}
	other, _, err := encode(testEntries()[:1])
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(res.Location, other, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := x.Load(ctx, "batch"); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("got %v, want ErrDigestMismatch", err)
	}
}

type fakeObject struct {
	body     []byte
	encoding string
	metadata map[string]string
}

type fakeS3 struct {
	objects map[string]fakeObject
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = fakeObject{body: body, encoding: *in.ContentEncoding, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.body)),
		Metadata: obj.metadata,
	}, nil
}

func TestR2Exporter(t *testing.T) {
	fake := &fakeS3{objects: map[string]fakeObject{}}
	x := newR2Exporter(fake, "logs", nil)
	ctx := context.Background()

	entries := testEntries()
	res, err := x.Export(ctx, "batch", entries)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Location != "r2://logs/exports/batch.ndjson.gz" {
		t.Errorf("Location = %q", res.Location)
	}

	obj, ok := fake.objects["logs/exports/batch.ndjson.gz"]
	if !ok {
		t.Fatal("object not uploaded")
	}
	if obj.encoding != "gzip" {
		t.Errorf("ContentEncoding = %q, want gzip", obj.encoding)
	}
	if obj.metadata["sha3"] != res.Digest {
		t.Errorf("sha3 metadata = %q, want %q", obj.metadata["sha3"], res.Digest)
	}

	got, err := x.Load(ctx, "batch")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEntries(t, got, entries)

	if _, err := x.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	obj.metadata = map[string]string{"sha3": "bogus"}
	fake.objects["logs/exports/batch.ndjson.gz"] = obj
	if _, err := x.Load(ctx, "batch"); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("got %v, want ErrDigestMismatch", err)
	}
}

func TestR2ConfigValidate(t *testing.T) {
	full := R2Config{AccountID: "acct", AccessKeyID: "id", SecretAccessKey: "secret", Bucket: "logs"}
	if err := full.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
	if got := full.Endpoint(); got != "https://acct.r2.cloudflarestorage.com" {
		t.Errorf("Endpoint = %q", got)
	}

	tests := []struct {
		name string
		cfg  R2Config
	}{
		{"no account", R2Config{AccessKeyID: "id", SecretAccessKey: "s", Bucket: "b"}},
		{"no key", R2Config{AccountID: "a", SecretAccessKey: "s", Bucket: "b"}},
		{"no secret", R2Config{AccountID: "a", AccessKeyID: "id", Bucket: "b"}},
		{"no bucket", R2Config{AccountID: "a", AccessKeyID: "id", SecretAccessKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := NewR2Exporter(R2Config{}, nil); err == nil {
		t.Error("expected NewR2Exporter to reject empty config")
	}
}
