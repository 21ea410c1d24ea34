package logstore

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
)

var (
	ErrOpenFailed   = errors.New("open failed")
	ErrSchemaFailed = errors.New("schema failed")
	ErrCloseFailed  = errors.New("close failed")
	ErrInsertFailed = errors.New("insert failed")
	ErrQueryFailed  = errors.New("query failed")
	ErrPruneFailed  = errors.New("prune failed")

	// ErrNotOpen is returned for operations on a store that was never opened.
	ErrNotOpen = errors.New("store not open")
	// ErrClosed is returned for operations submitted after Close.
	ErrClosed = errors.New("store closed")
)

// StoreError carries the engine's status code and diagnostic text.
// Match the kind with errors.Is(err, ErrQueryFailed) and friends.
type StoreError struct {
	Kind error
	Code int
	Msg  string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("logstore: %v: %s (code %d)", e.Kind, e.Msg, e.Code)
	}
	return fmt.Sprintf("logstore: %v: %s", e.Kind, e.Msg)
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// newStoreError wraps err as kind, lifting the SQLite result code if the
// driver reported one.
func newStoreError(kind error, err error) *StoreError {
	se := &StoreError{Kind: kind, Msg: err.Error(), Err: err}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		se.Code = sqliteErr.Code()
	}
	return se
}
