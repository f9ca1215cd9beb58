package lock

import (
	"strings"
	"sync"

	"github.com/itchan-dev/bbs/shared/logger"
)

const maxCachedLocks = 1024

// Evaluator answers capability checks. It is safe for concurrent use and has no
// side effects beyond caching parsed lock strings.
type Evaluator struct {
	superPermission string

	mu    sync.RWMutex
	cache map[string]Locks // nil value: the lock string failed to parse
}

// New creates an evaluator. Subjects holding superPermission (if not empty)
// pass every check, like subjects flagged as super-admin.
func New(superPermission string) *Evaluator {
	return &Evaluator{
		superPermission: superPermission,
		cache:           make(map[string]Locks),
	}
}

func (e *Evaluator) IsSuperAdmin(s Subject) bool {
	if s == nil {
		return false
	}
	if s.IsSuperAdmin() {
		return true
	}
	return e.superPermission != "" && s.HasPermission(e.superPermission)
}

// Authorize is Check with the admin fallback enabled.
func (e *Evaluator) Authorize(s Subject, r Resource, c Capability) bool {
	return e.Check(s, r, c, true)
}

// Check evaluates c on r for s: super-admin override, then the resource's admin
// predicate when checkAdmin is set, then the predicate of c itself. Anything
// missing or unparsable denies.
func (e *Evaluator) Check(s Subject, r Resource, c Capability, checkAdmin bool) bool {
	if s == nil || r == nil {
		return false
	}
	if e.IsSuperAdmin(s) {
		return true
	}
	locks, ok := e.locks(r.LockString())
	if !ok {
		return false
	}
	if checkAdmin {
		if p, found := locks[Admin]; found && p.Eval(s) {
			return true
		}
	}
	p, found := locks[c]
	if !found {
		return false
	}
	return p.Eval(s)
}

// Flags renders one letter per capability ('R', 'P', 'A' ...) or a space when
// the subject lacks it. The admin fallback is not applied.
func (e *Evaluator) Flags(s Subject, r Resource, caps ...Capability) string {
	var b strings.Builder
	for _, c := range caps {
		if e.Check(s, r, c, false) {
			b.WriteString(strings.ToUpper(string(c[:1])))
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func (e *Evaluator) locks(lockString string) (Locks, bool) {
	e.mu.RLock()
	locks, cached := e.cache[lockString]
	e.mu.RUnlock()
	if cached {
		return locks, locks != nil
	}

	parsed, err := Parse(lockString)
	if err != nil {
		logger.Log.Warn("denying access on unparsable lock string", "locks", lockString, "error", err)
		parsed = nil
	}

	e.mu.Lock()
	if len(e.cache) >= maxCachedLocks {
		e.cache = make(map[string]Locks)
	}
	e.cache[lockString] = parsed
	e.mu.Unlock()
	return parsed, parsed != nil
}
