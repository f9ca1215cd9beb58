package service

import (
	"time"

	"github.com/itchan-dev/bbs/backend/internal/lock"
)

// Authorizer answers capability checks; *lock.Evaluator implements it.
type Authorizer interface {
	Authorize(s lock.Subject, r lock.Resource, c lock.Capability) bool
	Flags(s lock.Subject, r lock.Resource, caps ...lock.Capability) string
}

// DefaultLocks are the lock strings for the site and for newly created
// categories and boards.
type DefaultLocks struct {
	Site     string
	Category string
	Board    string
}

// siteLocks adapts the configured site lock string to lock.Resource.
type siteLocks string

func (s siteLocks) LockString() string {
	return string(s)
}

// now is the engine clock. Timestamps are kept at microsecond precision so
// values survive a round trip through postgres unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
