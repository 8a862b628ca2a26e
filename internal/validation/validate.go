package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/blobworks/transfer/errors"
	"github.com/blobworks/transfer/transfertypes"
)

// maxKeyLength is the longest object key most stores accept (1024 bytes).
const maxKeyLength = 1024

// ValidateObjectKey validates that an object key is acceptable.
// This includes preventing path traversal attacks and control characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
			WithMessage("object key cannot be empty")
	}

	if hasPathTraversal(key) {
		return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("object key cannot contain path traversal sequences")
	}

	if len(key) > maxKeyLength {
		return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage(fmt.Sprintf("object key cannot exceed %d characters", maxKeyLength))
	}

	if hasControlCharacters(key) {
		return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("object key cannot contain control characters")
	}

	return nil
}

// ValidateLimits checks that part limits are internally consistent.
func ValidateLimits(limits transfertypes.Limits) error {
	limits = limits.WithDefaults()

	if limits.MinPartSize > limits.MaxPartSize {
		return errors.NewError("validateLimits", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("min part size %d exceeds max part size %d",
				limits.MinPartSize, limits.MaxPartSize))
	}
	if limits.MaxParts < 1 {
		return errors.NewError("validateLimits", errors.ErrInvalidInput).
			WithMessage("max parts must be at least 1")
	}
	return nil
}

// ValidatePartSize checks a caller-supplied part size against the limits.
// Zero is allowed and means "use the default".
func ValidatePartSize(partSize int64, limits transfertypes.Limits) error {
	if partSize == 0 {
		return nil
	}
	limits = limits.WithDefaults()

	if partSize < 0 {
		return errors.NewError("validatePartSize", errors.ErrInvalidInput).
			WithMessage("part size cannot be negative")
	}
	if partSize > limits.MaxPartSize {
		return errors.NewError("validatePartSize", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("part size %d exceeds protocol maximum %d",
				partSize, limits.MaxPartSize))
	}
	return nil
}

// hasPathTraversal checks for directory traversal sequences in a key.
func hasPathTraversal(key string) bool {
	if strings.HasPrefix(key, "/") {
		return true
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// hasControlCharacters checks for ASCII control characters in a key.
func hasControlCharacters(key string) bool {
	for _, r := range key {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
