// Package storage defines the capability set the sync core needs from a
// remote store, and its concrete implementations. The core never depends
// on provider-specific types.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by ReadText when no blob exists at the key.
	ErrNotFound = errors.New("object not found")
)

// Entry describes one remote object inside a listed prefix.
type Entry struct {
	// Name is the object's base name within the listed prefix.
	Name string
	// Key is the full object key.
	Key string
	// Size in bytes.
	Size int64
	// LastModified is the store's own reported modification time. The
	// sync core treats it as advisory only; the instant of record comes
	// from the encoded object name.
	LastModified time.Time
}

// Provider is the primitive remote operation set required by the sync
// engine. Implementations handle pagination, retries and transport
// concerns internally; a terminal failure surfaces as an error which the
// engine treats as "remote state unknown" for that directory.
type Provider interface {
	// List returns the objects directly under prefix (one level, not
	// recursive), following continuation cursors until exhausted.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// ListFolders returns the names of sub-folders directly under prefix.
	ListFolders(ctx context.Context, prefix string) ([]string, error)

	// Upload copies the local file to the remote key. The destination is
	// only visible once the full copy succeeded.
	Upload(ctx context.Context, localPath, key string) error

	// Download copies the remote object to the local path. The
	// destination is written atomically: on failure the previous
	// complete version (or nothing) remains.
	Download(ctx context.Context, key, localPath string) error

	// CreateFolder creates a folder marker at prefix. Idempotent;
	// "already exists" is not an error.
	CreateFolder(ctx context.Context, prefix string) error

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// ReadText fetches a small text blob. Returns ErrNotFound when the
	// key does not exist.
	ReadText(ctx context.Context, key string) (string, error)

	// WriteText stores a small text blob at key, replacing any previous
	// content wholesale.
	WriteText(ctx context.Context, key, content string) error
}
