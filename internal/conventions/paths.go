package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default opstrack data directory name (relative to home).
	DefaultDataDir = ".opstrack"
	// HistoryDBFile is the filename of the operation history database.
	HistoryDBFile = "history.db"
	// OperationsFile is the filename of the optional operations configuration.
	OperationsFile = "operations.yaml"
)

// HistoryDBPath returns the history database path inside a data directory.
func HistoryDBPath(dataDir string) string {
	return filepath.Join(dataDir, HistoryDBFile)
}

// OperationsFilePath returns the operations configuration path inside a data directory.
func OperationsFilePath(dataDir string) string {
	return filepath.Join(dataDir, OperationsFile)
}
