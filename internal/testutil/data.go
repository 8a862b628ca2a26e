package testutil

import (
	"bytes"
	"crypto/md5" //nolint:gosec // ETag convention, not a security boundary
	"encoding/hex"
)

// DeterministicData returns n bytes of repeatable, non-uniform content. The
// same n always yields the same bytes, so tests can compare round-tripped
// data without carrying fixtures.
func DeterministicData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i%251) ^ byte(i>>8)
	}
	return data
}

// DataReader returns a reader over DeterministicData(n).
func DataReader(n int) *bytes.Reader {
	return bytes.NewReader(DeterministicData(n))
}

// MD5Hex returns the hex-encoded MD5 digest of data.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // ETag convention, not a security boundary
	return hex.EncodeToString(sum[:])
}
