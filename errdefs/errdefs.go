// Package errdefs holds the error taxonomy shared by every stage of the
// pipeline and its mapping to process exit codes.
package errdefs

import "errors"

// Sentinel errors. Components wrap these with context using
// fmt.Errorf("...: %w", ErrX) and callers test with errors.Is.
var (
	// ErrInvalidArguments is bad command-line usage. Nothing is written.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrFileNotFound is a missing input path or required companion file.
	ErrFileNotFound = errors.New("file not found")

	// ErrKeyNotFound is a required variable absent from a snapshot, or a
	// cell present on one side of a join and absent on the other.
	ErrKeyNotFound = errors.New("key not found")

	// ErrAssertionFailed is a shape, padding, cardinality or consistency
	// violation.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrOutputExists is returned when an artifact would be overwritten
	// without force.
	ErrOutputExists = errors.New("output already exists")
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitInvalidArguments = 1
	ExitFileNotFound     = 2
	ExitKeyNotFound      = 3
	ExitAssertionFailed  = -1
)

// ExitCode maps err onto the process exit code contract
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrAssertionFailed):
		return ExitAssertionFailed
	case errors.Is(err, ErrKeyNotFound):
		return ExitKeyNotFound
	case errors.Is(err, ErrFileNotFound):
		return ExitFileNotFound
	case errors.Is(err, ErrInvalidArguments), errors.Is(err, ErrOutputExists):
		return ExitInvalidArguments
	}
	// Unclassified I/O failures surface as assertion failures: the run
	// cannot vouch for any artifact it may have touched.
	return ExitAssertionFailed
}
