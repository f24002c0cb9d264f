package model

import "errors"

// Error taxonomy shared by all upstream-facing components. Concrete errors
// wrap one of these and are matched with errors.Is.
var (
	ErrUnreachable     = errors.New("upstream unreachable")
	ErrTimeout         = errors.New("upstream timed out")
	ErrInvalidResponse = errors.New("invalid upstream response")
	ErrNotFound        = errors.New("not found")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrConsistency     = errors.New("consistency violation")
)

// Kind returns a short label for the class of err, or "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConsistency):
		return "consistency"
	case errors.Is(err, ErrAuthFailed):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "other"
	}
}
