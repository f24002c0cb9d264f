package appliance

import "time"

type session struct {
	sid        string
	csrf       string
	validUntil time.Time
}

// validFor reports whether the session can still be used at now. A nil
// session is never valid.
func (s *session) validFor(now time.Time) bool {
	return s != nil && now.Before(s.validUntil)
}
