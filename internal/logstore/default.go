package logstore

import (
	"os"
	"path/filepath"
)

// DefaultFileName is the store file name used by DefaultPath.
const DefaultFileName = "logkeep.db"

// DefaultPath returns where a zero-configuration store lives:
// $LOGKEEP_DATA_DIR, then the user cache directory, then the working
// directory.
func DefaultPath() string {
	if dataDir := os.Getenv("LOGKEEP_DATA_DIR"); dataDir != "" {
		return filepath.Join(dataDir, DefaultFileName)
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(cacheDir, "logkeep", DefaultFileName)
}

// OpenDefault creates and opens a store at DefaultPath. Call it once at
// startup and pass the store to whatever needs it.
func OpenDefault(opts ...Option) (*Store, error) {
	s := New(DefaultPath(), opts...)
	if err := s.Open(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
