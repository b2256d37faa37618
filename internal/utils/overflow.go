package utils

import (
	"fmt"
	"math"
)

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
// Returns an error if overflow would occur.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil // No overflow when either is zero
	}

	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}

	return nil
}

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
// Returns 0 and an error if overflow would occur.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// Product multiplies all entries of a dimension vector with overflow checking.
// The product of an empty vector is 1 (a rank-0 space holds one element).
func Product(dims []uint64) (uint64, error) {
	total := uint64(1)
	for i, d := range dims {
		if err := CheckMultiplyOverflow(total, d); err != nil {
			return 0, fmt.Errorf("extent overflow at dimension %d: %w", i, err)
		}
		total *= d
	}
	return total, nil
}

// ValidateBufferSize validates that a size is within reasonable limits.
// maxSize parameter allows different limits for different use cases.
func ValidateBufferSize(size, maxSize uint64, description string) error {
	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}

	return nil
}

// Common limits.
const (
	// MaxSelectionElements limits a single selection to 1 billion elements.
	MaxSelectionElements = 1_000_000_000

	// MaxDatasetBytes limits a dataset payload to 1GB.
	MaxDatasetBytes = 1024 * 1024 * 1024
)
