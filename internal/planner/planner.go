package planner

import (
	"fmt"

	xfererrors "github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/transfertypes"
)

// PartSpec describes one planned part: a 1-based contiguous part number and
// the byte range it covers.
type PartSpec struct {
	PartNumber int32
	Offset     int64
	Length     int64
}

// Plan is an ordered part layout for one transfer.
type Plan struct {
	// Parts is the ordered part list. Always non-empty; a simple plan has
	// exactly one part.
	Parts []PartSpec

	// PartSize is the chosen size of every part except possibly the last.
	PartSize int64

	// TotalSize is the size the plan covers.
	TotalSize int64

	// Simple marks a plan that should be performed as a single non-multipart
	// operation.
	Simple bool
}

// Compute produces the part layout for totalSize bytes under the given
// limits. partSizeHint is the caller's preferred part size; it is clamped to
// the limits and grown when the part count would otherwise exceed the
// protocol ceiling, preferring fewer, larger parts.
//
// Planning is a pure function of its inputs: the same (totalSize, limits,
// hint) always yields an identical plan, which is what makes retries within
// one run resumable without checkpoint files.
func Compute(totalSize int64, limits transfertypes.Limits, partSizeHint int64) (*Plan, error) {
	if totalSize < 0 {
		return nil, xfererrors.NewError("plan", xfererrors.ErrInvalidInput).
			WithMessage("total size cannot be negative")
	}
	limits = limits.WithDefaults()

	// Small objects (and the zero-length edge case) go through a single
	// non-multipart call; a multipart session is never opened for them.
	if totalSize <= limits.MultipartThreshold || totalSize <= limits.MinPartSize {
		return &Plan{
			Parts:     []PartSpec{{PartNumber: 1, Offset: 0, Length: totalSize}},
			PartSize:  totalSize,
			TotalSize: totalSize,
			Simple:    true,
		}, nil
	}

	partSize := partSizeHint
	if partSize < limits.MinPartSize {
		partSize = limits.MinPartSize
	}

	// Grow the part size until the count fits under the ceiling.
	if minSize := ceilDiv(totalSize, int64(limits.MaxParts)); partSize < minSize {
		partSize = minSize
	}
	if partSize > limits.MaxPartSize {
		partSize = limits.MaxPartSize
	}

	count := ceilDiv(totalSize, partSize)
	if count > int64(limits.MaxParts) {
		// Even maximum-size parts cannot cover the object.
		return nil, xfererrors.NewError("plan", xfererrors.ErrSizeUnsupported).
			WithMessage(fmt.Sprintf("%d bytes requires %d parts of %d bytes, limit is %d parts",
				totalSize, count, partSize, limits.MaxParts))
	}

	parts := make([]PartSpec, 0, count)
	for i := int64(0); i < count; i++ {
		offset := i * partSize
		length := partSize
		if offset+length > totalSize {
			length = totalSize - offset
		}
		parts = append(parts, PartSpec{
			PartNumber: int32(i + 1),
			Offset:     offset,
			Length:     length,
		})
	}

	return &Plan{
		Parts:     parts,
		PartSize:  partSize,
		TotalSize: totalSize,
	}, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
