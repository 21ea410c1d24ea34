// Package metacodec turns entry metadata maps into the opaque bytes the log
// store persists, and back.
//
// The JSON codec writes a one-byte version followed by a JSON object. Values
// come back as the types encoding/json produces, with numbers as json.Number,
// so only JSON-representable metadata round-trips exactly.
package metacodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ehrlich-b/logkeep/internal/crypto"
)

// Version1 is the leading byte of a JSON-encoded metadata blob.
const Version1 byte = 0x01

var ErrUnknownVersion = errors.New("unknown metadata version")

// Codec encodes metadata to bytes. A nil or empty map encodes to nil, which
// the store treats as "no metadata".
type Codec interface {
	Encode(meta map[string]any) ([]byte, error)
	Decode(data []byte) (map[string]any, error)
}

// JSON is the default codec.
type JSON struct{}

func (JSON) Encode(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return append([]byte{Version1}, body...), nil
}

func (JSON) Decode(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] != Version1 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownVersion, data[0])
	}

	dec := json.NewDecoder(bytes.NewReader(data[1:]))
	dec.UseNumber()
	var meta map[string]any
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

// Sealed encrypts the output of another codec.
type Sealed struct {
	Inner  Codec
	Cipher *crypto.Cipher
}

// NewSealed wraps JSON with a cipher derived from secret.
func NewSealed(secret string) (*Sealed, error) {
	c, err := crypto.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Sealed{Inner: JSON{}, Cipher: c}, nil
}

func (s *Sealed) Encode(meta map[string]any) ([]byte, error) {
	data, err := s.Inner.Encode(meta)
	if err != nil || len(data) == 0 {
		return data, err
	}
	sealed, err := s.Cipher.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("seal metadata: %w", err)
	}
	return sealed, nil
}

func (s *Sealed) Decode(data []byte) (map[string]any, error) {
	opened, err := s.Cipher.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	return s.Inner.Decode(opened)
}

// FromPairs parses "key=value" strings. Values that look like integers,
// floats or booleans are stored as such; everything else is a string.
func FromPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q: want key=value", p)
		}
		meta[key] = parseValue(value)
	}
	return meta, nil
}

func parseValue(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

// Format renders metadata as "k=v" pairs sorted by key.
func Format(meta map[string]any) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}
