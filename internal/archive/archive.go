// Package archive exports log entries as gzip-compressed NDJSON, either to a
// local directory or to an S3-compatible bucket (Cloudflare R2).
package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/ehrlich-b/logkeep/internal/logstore"
)

// ErrDigestMismatch is returned by Load when an export's content does not
// match its recorded SHA3-256 digest.
var ErrDigestMismatch = errors.New("export digest mismatch")

// ErrNotFound is returned by Load for an unknown export name.
var ErrNotFound = errors.New("export not found")

// Record is one exported entry, one per NDJSON line.
type Record struct {
	Time     time.Time `json:"t"`
	Severity int       `json:"s"`
	Message  string    `json:"m"`
	Metadata []byte    `json:"d,omitempty"` // base64 in JSON
}

// Result describes a finished export.
type Result struct {
	Name            string
	Location        string
	Entries         int
	RawBytes        int64
	CompressedBytes int64
	Digest          string // hex SHA3-256 of the compressed bytes
}

// Exporter writes and reads back exports.
type Exporter interface {
	Export(ctx context.Context, name string, entries []logstore.Entry) (*Result, error)
	Load(ctx context.Context, name string) ([]logstore.Entry, error)
}

// NewName returns a unique export name stamped with t.
func NewName(t time.Time) string {
	return fmt.Sprintf("logkeep-%s-%s", t.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

func toRecord(e logstore.Entry) Record {
	return Record{
		Time:     e.Timestamp.UTC(),
		Severity: int(e.Severity),
		Message:  e.Message,
		Metadata: e.Metadata,
	}
}

func (r Record) entry() logstore.Entry {
	return logstore.Entry{
		Timestamp: r.Time,
		Severity:  logstore.Severity(r.Severity),
		Message:   r.Message,
		Metadata:  r.Metadata,
	}
}

// encode builds the gzip NDJSON body for entries.
func encode(entries []logstore.Entry) (compressed []byte, rawSize int64, err error) {
	var raw bytes.Buffer
	for _, e := range entries {
		data, err := json.Marshal(toRecord(e))
		if err != nil {
			return nil, 0, fmt.Errorf("marshal record: %w", err)
		}
		raw.Write(data)
		raw.WriteByte('\n')
	}
	rawSize = int64(raw.Len())

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw.Bytes()); err != nil {
		return nil, 0, fmt.Errorf("gzip compress: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, 0, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), rawSize, nil
}

// decode reads gzip NDJSON back into entries.
func decode(compressed []byte) ([]logstore.Entry, error) {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	var entries []logstore.Entry
	scanner := bufio.NewScanner(gr)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		entries = append(entries, r.entry())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return entries, nil
}

// Digest returns the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
