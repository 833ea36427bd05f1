package store

import "context"

// Sink is an optional write-through backend for the store. Payloads are the
// JSON encoding of the value held under each key. Implementations live under
// internal/infra/persistence.
type Sink interface {
	// Driver names the backend for logs and diagnostics.
	Driver() string
	// Load returns every persisted key with its payload.
	Load(ctx context.Context) (map[string][]byte, error)
	// Save creates or overwrites the payload stored under key.
	Save(ctx context.Context, key string, payload []byte) error
	// Delete removes key. Missing keys are ignored.
	Delete(ctx context.Context, key string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
}

// Logger is the structured logging surface the store needs. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
