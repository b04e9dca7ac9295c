package wire

import (
	"errors"
	"fmt"
	"math"
)

var ErrBadRunLength = errors.New("wire: malformed run-length sequence")

// Scalar is the set of element types the run-length codec accepts. Counts
// are stored in the same type as the values.
type Scalar interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// EncodeRuns encodes seq as [count, value, count, value, ...] over runs of
// equal adjacent values. Runs longer than T can count are split. For float
// types NaN never equals itself and so is always a run of one.
func EncodeRuns[T Scalar](seq []T) []T {
	if len(seq) == 0 {
		return []T{}
	}
	out := make([]T, 0, 2)
	run, cur := 1, seq[0]
	for _, v := range seq[1:] {
		// a run is split when its count no longer fits in T
		if v == cur && int(T(run+1)) == run+1 {
			run++
			continue
		}
		out = append(out, T(run), cur)
		run, cur = 1, v
	}
	return append(out, T(run), cur)
}

var ErrRunsTooLong = errors.New("wire: run-length sequence exceeds limit")

// DecodeRuns is the inverse of EncodeRuns.
func DecodeRuns[T Scalar](enc []T) ([]T, error) {
	return DecodeRunsLimit(enc, -1)
}

// DecodeRunsLimit is DecodeRuns for untrusted input: the decoded length is
// checked against limit before anything is allocated. A negative limit
// disables the check.
func DecodeRunsLimit[T Scalar](enc []T, limit int) ([]T, error) {
	if len(enc)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrBadRunLength, len(enc))
	}
	total := 0
	for i := 0; i < len(enc); i += 2 {
		n := int(enc[i])
		if n <= 0 || T(n) != enc[i] {
			return nil, fmt.Errorf("%w: count %v at %d", ErrBadRunLength, enc[i], i)
		}
		if total > math.MaxInt-n {
			return nil, fmt.Errorf("%w: length overflows", ErrRunsTooLong)
		}
		total += n
		if limit >= 0 && total > limit {
			return nil, fmt.Errorf("%w: more than %d values", ErrRunsTooLong, limit)
		}
	}
	out := make([]T, 0, total)
	for i := 0; i < len(enc); i += 2 {
		for range int(enc[i]) {
			out = append(out, enc[i+1])
		}
	}
	return out, nil
}
