package checksum

import (
	"crypto/md5" //nolint:gosec // ETag convention, not a security boundary
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/internal/source"
)

// Manager validates a source against the snapshot taken when the transfer
// was planned. It is read-only after construction and safe for concurrent use.
type Manager struct {
	src *source.Source

	size        int64
	fingerprint uint64
}

// NewManager snapshots the source's cached size and fingerprint.
func NewManager(src *source.Source) *Manager {
	return &Manager{
		src:         src,
		size:        src.Size(),
		fingerprint: src.Fingerprint(),
	}
}

// ValidateQuick performs the cheap drift check run before each part attempt:
// a metadata probe comparing the current size against the snapshot. Same-size
// content mutations are caught by ValidateFull before the transfer is
// finalized. Buffers always pass, since they are exclusively owned.
func (m *Manager) ValidateQuick() error {
	if m.src.Kind() == source.KindBuffer {
		return nil
	}

	size, err := m.src.Probe()
	if err != nil {
		return err
	}
	if size != m.size {
		return xfererrors.NewError("checksum", xfererrors.ErrSourceMutated).
			WithMessage(fmt.Sprintf("size changed from %d to %d bytes", m.size, size))
	}
	return nil
}

// ValidateFull re-hashes the source region and compares the fingerprint
// against the snapshot. Run once before the transfer is finalized.
func (m *Manager) ValidateFull() error {
	sum, err := m.src.Rehash()
	if err != nil {
		return err
	}
	if sum != m.fingerprint {
		return xfererrors.NewError("checksum", xfererrors.ErrSourceMutated).
			WithMessage(fmt.Sprintf("fingerprint changed from %016x to %016x", m.fingerprint, sum))
	}
	return nil
}

// Fingerprint returns the snapshotted fingerprint as a hex string.
func (m *Manager) Fingerprint() string {
	return fmt.Sprintf("%016x", m.fingerprint)
}

// DigestReader tees a part's bytes through an MD5 digest while they are read
// by the transport, so the local digest covers exactly what was sent.
type DigestReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

// NewDigestReader wraps r with digest accumulation.
func NewDigestReader(r io.Reader) *DigestReader {
	return &DigestReader{
		r: r,
		h: md5.New(), //nolint:gosec // ETag convention, not a security boundary
	}
}

func (d *DigestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.n += int64(n)
	}
	//nolint:wrapcheck // io.Reader contract - error comes from underlying reader
	return n, err
}

// Sum returns the hex-encoded digest of the bytes read so far.
func (d *DigestReader) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// BytesRead returns how many bytes have passed through the reader.
func (d *DigestReader) BytesRead() int64 {
	return d.n
}

// VerifyPart compares a locally computed digest against the digest the
// transport returned for the same bytes. Composite identifiers (multipart
// ETags containing a '-') and empty remote digests are not comparable and
// pass. A mismatch is a retryable part failure.
func VerifyPart(local, remote string) error {
	remote = strings.Trim(remote, `"`)
	if remote == "" || strings.Contains(remote, "-") {
		return nil
	}
	if !strings.EqualFold(local, remote) {
		return xfererrors.NewError("checksum", xfererrors.ErrChecksumMismatch).
			WithMessage(fmt.Sprintf("local %s, remote %s", local, remote))
	}
	return nil
}
