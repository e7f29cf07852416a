package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document is stored under a key.
	ErrNotFound = errors.New("store: document not found")
	// ErrCorrupt is returned when a stored document cannot be decoded.
	ErrCorrupt = errors.New("store: corrupt document")
)

// Documents loads and saves whole JSON-compatible documents by key.
// Every Save overwrites the entire document; there are no partial updates.
type Documents interface {
	Load(ctx context.Context, key string, dst any) error
	Save(ctx context.Context, key string, v any) error
}

// LoadOrDefault loads the document under key. A missing or undecodable
// document is replaced by def, which is written back so the next start
// finds a valid document. The returned error is only the write-back error;
// the value is usable either way.
func LoadOrDefault[T any](ctx context.Context, docs Documents, key string, def T) (T, error) {
	var out T
	err := docs.Load(ctx, key, &out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCorrupt) {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if saveErr := docs.Save(ctx, key, def); saveErr != nil {
		return def, fmt.Errorf("reset %s: %w", key, saveErr)
	}
	return def, nil
}
