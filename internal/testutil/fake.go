package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/transport"
)

// FakeTransport is an in-memory object store implementing transport.Transport.
// It computes real MD5 digests for parts and ranges, tracks session lifecycle,
// and supports fault injection keyed by part number or range offset.
type FakeTransport struct {
	mu sync.Mutex

	objects  map[string][]byte
	sessions map[transport.SessionID]*fakeSession

	completed []transport.SessionID
	aborted   []transport.SessionID

	partAttempts  map[int32]int
	rangeAttempts map[int64]int

	lastInput transport.UploadInput

	// FailUploadPart, when set, is consulted before each part upload with the
	// part number and the 1-based attempt count for that part. A non-nil
	// return fails the attempt.
	FailUploadPart func(partNumber int32, attempt int) error

	// FailGetRange is the download-side counterpart, keyed by range offset.
	FailGetRange func(offset int64, attempt int) error

	// FailComplete, when set, fails CompleteSession.
	FailComplete error

	// CorruptDigests makes part and range digests disagree with the actual
	// bytes, to exercise checksum verification.
	CorruptDigests bool

	// OpaqueETags makes ETags opaque tokens instead of body MD5 hashes and
	// suppresses upload digests, the way stores respond for KMS-encrypted
	// objects.
	OpaqueETags bool
}

type fakeSession struct {
	key   string
	parts map[int32][]byte
}

// NewFakeTransport creates an empty fake store.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		objects:       make(map[string][]byte),
		sessions:      make(map[transport.SessionID]*fakeSession),
		partAttempts:  make(map[int32]int),
		rangeAttempts: make(map[int64]int),
	}
}

// SeedObject installs an object directly, for download tests.
func (f *FakeTransport) SeedObject(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
}

// Object returns a stored object's bytes and whether it exists.
func (f *FakeTransport) Object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

// AbortedSessions returns the sessions that were aborted.
func (f *FakeTransport) AbortedSessions() []transport.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.SessionID(nil), f.aborted...)
}

// CompletedSessions returns the sessions that were completed.
func (f *FakeTransport) CompletedSessions() []transport.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.SessionID(nil), f.completed...)
}

// OpenSessions returns the number of sessions started but neither completed
// nor aborted.
func (f *FakeTransport) OpenSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// LastUploadInput returns the metadata supplied with the most recent
// PutObject or StartSession call.
func (f *FakeTransport) LastUploadInput() transport.UploadInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInput
}

// PartAttempts returns how many upload attempts were made for a part.
func (f *FakeTransport) PartAttempts(partNumber int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partAttempts[partNumber]
}

// PutObject implements transport.Transport.
func (f *FakeTransport) PutObject(_ context.Context, input transport.UploadInput, reader io.Reader, _ int64) (*transport.PutResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInput = input
	f.objects[input.Key] = data
	etag, digest := f.etagAndDigest(data)
	return &transport.PutResult{ETag: etag, Digest: digest}, nil
}

// StartSession implements transport.Transport.
func (f *FakeTransport) StartSession(_ context.Context, input transport.UploadInput) (transport.SessionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := transport.SessionID(uuid.NewString())
	f.lastInput = input
	f.sessions[id] = &fakeSession{key: input.Key, parts: make(map[int32][]byte)}
	return id, nil
}

// UploadPart implements transport.Transport.
func (f *FakeTransport) UploadPart(_ context.Context, session transport.SessionID, key string, partNumber int32, reader io.Reader, _ int64) (transport.CompletedPart, error) {
	f.mu.Lock()
	f.partAttempts[partNumber]++
	attempt := f.partAttempts[partNumber]
	failFn := f.FailUploadPart
	sess, ok := f.sessions[session]
	f.mu.Unlock()

	if !ok {
		return transport.CompletedPart{}, xfererrors.NewPartError("uploadPart", key, partNumber,
			xfererrors.ErrSessionFailed)
	}
	if failFn != nil {
		if err := failFn(partNumber, attempt); err != nil {
			return transport.CompletedPart{}, err
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return transport.CompletedPart{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	sess.parts[partNumber] = data
	etag, digest := f.etagAndDigest(data)
	return transport.CompletedPart{
		PartNumber: partNumber,
		ETag:       etag,
		Digest:     digest,
	}, nil
}

// CompleteSession implements transport.Transport. Parts must arrive sorted
// ascending and contiguous from 1, mirroring the real store's contract.
func (f *FakeTransport) CompleteSession(_ context.Context, session transport.SessionID, key string, parts []transport.CompletedPart) (*transport.CompleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailComplete != nil {
		return nil, f.FailComplete
	}
	sess, ok := f.sessions[session]
	if !ok {
		return nil, xfererrors.NewError("completeSession", xfererrors.ErrSessionFailed).WithKey(key)
	}
	if !sort.SliceIsSorted(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber }) {
		return nil, fmt.Errorf("parts not sorted ascending")
	}

	var assembled bytes.Buffer
	for i, p := range parts {
		if p.PartNumber != int32(i+1) {
			return nil, fmt.Errorf("part sequence gap at %d", p.PartNumber)
		}
		data, ok := sess.parts[p.PartNumber]
		if !ok {
			return nil, fmt.Errorf("part %d was never uploaded", p.PartNumber)
		}
		assembled.Write(data)
	}

	f.objects[key] = assembled.Bytes()
	delete(f.sessions, session)
	f.completed = append(f.completed, session)
	return &transport.CompleteResult{
		ETag: fmt.Sprintf(`"%s-%d"`, f.digest(assembled.Bytes()), len(parts)),
	}, nil
}

// AbortSession implements transport.Transport.
func (f *FakeTransport) AbortSession(_ context.Context, session transport.SessionID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, session)
	f.aborted = append(f.aborted, session)
	return nil
}

// Stat implements transport.Transport.
func (f *FakeTransport) Stat(_ context.Context, key string) (*transport.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return nil, xfererrors.NewError("stat", xfererrors.ErrObjectNotFound).WithKey(key)
	}
	return &transport.ObjectInfo{
		Key:  key,
		Size: int64(len(data)),
		ETag: quoted(f.digest(data)),
	}, nil
}

// GetObject implements transport.Transport.
func (f *FakeTransport) GetObject(_ context.Context, key string) (io.ReadCloser, *transport.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return nil, nil, xfererrors.NewError("getObject", xfererrors.ErrObjectNotFound).WithKey(key)
	}
	etag, digest := f.etagAndDigest(data)
	info := &transport.ObjectInfo{Key: key, Size: int64(len(data)), ETag: etag, Digest: digest}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// GetRange implements transport.Transport.
func (f *FakeTransport) GetRange(_ context.Context, key string, offset, length int64) (io.ReadCloser, string, error) {
	f.mu.Lock()
	f.rangeAttempts[offset]++
	attempt := f.rangeAttempts[offset]
	failFn := f.FailGetRange
	data, ok := f.objects[key]
	f.mu.Unlock()

	if !ok {
		return nil, "", xfererrors.NewError("getRange", xfererrors.ErrObjectNotFound).WithKey(key)
	}
	if failFn != nil {
		if err := failFn(offset, attempt); err != nil {
			return nil, "", err
		}
	}
	if offset < 0 || offset+length > int64(len(data)) {
		return nil, "", fmt.Errorf("range [%d,%d) outside object of %d bytes", offset, offset+length, len(data))
	}

	chunk := data[offset : offset+length]
	return io.NopCloser(bytes.NewReader(chunk)), f.digest(chunk), nil
}

func (f *FakeTransport) digest(data []byte) string {
	if f.CorruptDigests {
		return MD5Hex(append([]byte("corrupt"), data...))
	}
	return MD5Hex(data)
}

// etagAndDigest returns the ETag for stored bytes and the digest advertised
// alongside it. In opaque mode the ETag no longer reflects the body and no
// digest is advertised.
func (f *FakeTransport) etagAndDigest(data []byte) (etag, digest string) {
	if f.OpaqueETags {
		return quoted(MD5Hex(append([]byte("opaque"), data...))), ""
	}
	digest = f.digest(data)
	return quoted(digest), digest
}

func quoted(s string) string { return `"` + s + `"` }

var _ transport.Transport = (*FakeTransport)(nil)
