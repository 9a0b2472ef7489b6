package backend

import (
	"context"

	"budgeteer/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// PingFunc checks that the backend is reachable.
type PingFunc func(ctx context.Context) error

// BackendResult contains the store and its optional lifecycle hooks. Ping
// and Cleanup are nil for the memory backend.
type BackendResult struct {
	Store   ports.Store
	Ping    PingFunc
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	// Memory backend seeding
	SeedDir     string
	SeedOwnerID string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// IsValid checks if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	}
	return false
}

func (bt BackendType) String() string {
	return string(bt)
}
