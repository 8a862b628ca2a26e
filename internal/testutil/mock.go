// Package testutil provides test doubles and data helpers shared by the
// engine's test suites.
package testutil

import (
	"context"
	"errors"
	"io"

	"github.com/blobworks/transfer/transport"
)

// MockTransport is a transport.Transport test double with overridable
// function fields. Methods whose field is nil return an error, so a test
// exercising the upload path cannot silently succeed through an unstubbed
// download call.
type MockTransport struct {
	PutObjectFunc       func(ctx context.Context, input transport.UploadInput, reader io.Reader, size int64) (*transport.PutResult, error)
	StartSessionFunc    func(ctx context.Context, input transport.UploadInput) (transport.SessionID, error)
	UploadPartFunc      func(ctx context.Context, session transport.SessionID, key string, partNumber int32, reader io.Reader, size int64) (transport.CompletedPart, error)
	CompleteSessionFunc func(ctx context.Context, session transport.SessionID, key string, parts []transport.CompletedPart) (*transport.CompleteResult, error)
	AbortSessionFunc    func(ctx context.Context, session transport.SessionID, key string) error
	StatFunc            func(ctx context.Context, key string) (*transport.ObjectInfo, error)
	GetObjectFunc       func(ctx context.Context, key string) (io.ReadCloser, *transport.ObjectInfo, error)
	GetRangeFunc        func(ctx context.Context, key string, offset, length int64) (io.ReadCloser, string, error)
}

var errUnstubbed = errors.New("testutil: unexpected transport call")

// PutObject implements transport.Transport.
func (m *MockTransport) PutObject(ctx context.Context, input transport.UploadInput, reader io.Reader, size int64) (*transport.PutResult, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, input, reader, size)
	}
	return nil, errUnstubbed
}

// StartSession implements transport.Transport.
func (m *MockTransport) StartSession(ctx context.Context, input transport.UploadInput) (transport.SessionID, error) {
	if m.StartSessionFunc != nil {
		return m.StartSessionFunc(ctx, input)
	}
	return "", errUnstubbed
}

// UploadPart implements transport.Transport.
func (m *MockTransport) UploadPart(ctx context.Context, session transport.SessionID, key string, partNumber int32, reader io.Reader, size int64) (transport.CompletedPart, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, session, key, partNumber, reader, size)
	}
	return transport.CompletedPart{}, errUnstubbed
}

// CompleteSession implements transport.Transport.
func (m *MockTransport) CompleteSession(ctx context.Context, session transport.SessionID, key string, parts []transport.CompletedPart) (*transport.CompleteResult, error) {
	if m.CompleteSessionFunc != nil {
		return m.CompleteSessionFunc(ctx, session, key, parts)
	}
	return nil, errUnstubbed
}

// AbortSession implements transport.Transport.
func (m *MockTransport) AbortSession(ctx context.Context, session transport.SessionID, key string) error {
	if m.AbortSessionFunc != nil {
		return m.AbortSessionFunc(ctx, session, key)
	}
	return errUnstubbed
}

// Stat implements transport.Transport.
func (m *MockTransport) Stat(ctx context.Context, key string) (*transport.ObjectInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(ctx, key)
	}
	return nil, errUnstubbed
}

// GetObject implements transport.Transport.
func (m *MockTransport) GetObject(ctx context.Context, key string) (io.ReadCloser, *transport.ObjectInfo, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, key)
	}
	return nil, nil, errUnstubbed
}

// GetRange implements transport.Transport.
func (m *MockTransport) GetRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, string, error) {
	if m.GetRangeFunc != nil {
		return m.GetRangeFunc(ctx, key, offset, length)
	}
	return nil, "", errUnstubbed
}

var _ transport.Transport = (*MockTransport)(nil)
