// Package lock evaluates resource lock strings against a subject.
//
// A lock string maps capabilities to predicates, for example
//
//	read:all();post:perm(Player, Builder);admin:perm(Admin)
//
// Predicates form a small closed tree: literal true/false, permission any-of,
// permission all-of, and and/or combinations of those. There is no general
// expression evaluator behind it.
package lock

import (
	"sort"
	"strings"
)

// Subject is what a predicate is evaluated against.
type Subject interface {
	HasPermission(perm string) bool
	IsSuperAdmin() bool
}

// Resource is anything carrying a lock string.
type Resource interface {
	LockString() string
}

// Capability names an action on a resource.
type Capability string

const (
	See    Capability = "see"
	Create Capability = "create"
	Delete Capability = "delete"
	Admin  Capability = "admin"
	Read   Capability = "read"
	Post   Capability = "post"
)

var (
	SiteCapabilities     = []Capability{Create, Delete, Admin}
	CategoryCapabilities = []Capability{See, Create, Delete, Admin}
	BoardCapabilities    = []Capability{Read, Post, Admin}
)

type Predicate interface {
	Eval(s Subject) bool
	String() string
}

type literal bool

func (l literal) Eval(Subject) bool { return bool(l) }

func (l literal) String() string {
	if l {
		return "all()"
	}
	return "none()"
}

var (
	True  Predicate = literal(true)
	False Predicate = literal(false)
)

// PermAny passes when the subject holds at least one of the permissions.
type PermAny []string

func (p PermAny) Eval(s Subject) bool {
	for _, perm := range p {
		if s.HasPermission(perm) {
			return true
		}
	}
	return false
}

func (p PermAny) String() string {
	return "perm(" + strings.Join(p, ", ") + ")"
}

// PermAll passes when the subject holds every permission.
type PermAll []string

func (p PermAll) Eval(s Subject) bool {
	if len(p) == 0 {
		return false
	}
	for _, perm := range p {
		if !s.HasPermission(perm) {
			return false
		}
	}
	return true
}

func (p PermAll) String() string {
	return "perm_all(" + strings.Join(p, ", ") + ")"
}

type AnyOf []Predicate

func (a AnyOf) Eval(s Subject) bool {
	for _, p := range a {
		if p.Eval(s) {
			return true
		}
	}
	return false
}

func (a AnyOf) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = p.String()
	}
	return strings.Join(parts, " or ")
}

type AllOf []Predicate

func (a AllOf) Eval(s Subject) bool {
	if len(a) == 0 {
		return false
	}
	for _, p := range a {
		if !p.Eval(s) {
			return false
		}
	}
	return true
}

func (a AllOf) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = p.String()
	}
	return strings.Join(parts, " and ")
}

// Locks is a parsed lock string.
type Locks map[Capability]Predicate

// String renders the locks back to a canonical lock string, capabilities in
// lexical order.
func (l Locks) String() string {
	caps := make([]string, 0, len(l))
	for c := range l {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = c + ":" + l[Capability(c)].String()
	}
	return strings.Join(parts, ";")
}
