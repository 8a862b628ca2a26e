// Package transport defines the interface between the transfer engine and the
// remote object store. The engine decides what unit of work to run and when;
// the transport performs a single call and owns wire-protocol concerns such as
// signing, TLS, and connection-level retries.
package transport

import (
	"context"
	"io"
)

// SessionID identifies an open multipart session on the remote store.
type SessionID string

// CompletedPart is the opaque identifier returned by the transport for a
// successfully transferred part, required to complete the session.
type CompletedPart struct {
	// PartNumber is the 1-based part number
	PartNumber int32

	// ETag is the store-assigned identifier for the part
	ETag string

	// Digest is an optional hex-encoded content digest the store echoed back.
	// Empty when the store does not return one.
	Digest string
}

// ObjectInfo describes a remote object's metadata.
type ObjectInfo struct {
	// Key is the object key
	Key string

	// Size is the object size in bytes
	Size int64

	// ETag is the entity tag of the object
	ETag string

	// Digest is a hex-encoded content digest of the object body, populated
	// only when the store guarantees the value matches the bytes on the wire.
	// Empty when no such guarantee exists (for example encrypted objects
	// whose entity tag is an opaque token).
	Digest string
}

// PutResult is the outcome of a single-call (non-multipart) upload.
type PutResult struct {
	// ETag is the entity tag of the stored object
	ETag string

	// Digest is an optional hex-encoded digest of the stored body, subject to
	// the same guarantee as ObjectInfo.Digest.
	Digest string
}

// CompleteResult is the outcome of completing a multipart session.
type CompleteResult struct {
	// ETag is the entity tag of the assembled object
	ETag string
}

// UploadInput carries per-session metadata supplied at session start or
// simple-put time.
type UploadInput struct {
	// Key is the destination object key
	Key string

	// ContentType is the MIME type of the object
	ContentType string

	// Metadata contains user-defined metadata
	Metadata map[string]string
}

// Transport performs the remote calls the transfer engine schedules.
// Implementations must be safe for concurrent use: the scheduler invokes
// UploadPart and GetRange from multiple goroutines.
type Transport interface {
	// PutObject performs a single-call upload of size bytes from reader.
	PutObject(ctx context.Context, input UploadInput, reader io.Reader, size int64) (*PutResult, error)

	// StartSession opens a multipart session for the destination object.
	StartSession(ctx context.Context, input UploadInput) (SessionID, error)

	// UploadPart transfers one part within an open session and returns its
	// identifier. The reader yields exactly size bytes.
	UploadPart(ctx context.Context, session SessionID, key string, partNumber int32, reader io.Reader, size int64) (CompletedPart, error)

	// CompleteSession assembles the object from parts, which must be sorted
	// ascending by part number.
	CompleteSession(ctx context.Context, session SessionID, key string, parts []CompletedPart) (*CompleteResult, error)

	// AbortSession releases a session that will not be completed.
	AbortSession(ctx context.Context, session SessionID, key string) error

	// Stat returns metadata for a remote object without retrieving it.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// GetObject retrieves the whole object as a stream.
	GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// GetRange retrieves exactly [offset, offset+length) of the object.
	// The returned digest is the hex-encoded content digest of the range when
	// the store provides one, otherwise empty.
	GetRange(ctx context.Context, key string, offset, length int64) (body io.ReadCloser, digest string, err error)
}
